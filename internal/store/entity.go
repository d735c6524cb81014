package store

import "fmt"

// Entity names one of the seven cached record types.
type Entity string

const (
	EntityProfile       Entity = "profile"
	EntityCards         Entity = "cards"
	EntityRecipients    Entity = "recipients"
	EntityTransactions  Entity = "transactions"
	EntitySettings      Entity = "settings"
	EntityNotifications Entity = "notifications"
	EntityAccount       Entity = "account"
)

// Entities lists every entity in refresh order.
var Entities = []Entity{
	EntityProfile,
	EntityCards,
	EntityRecipients,
	EntityTransactions,
	EntitySettings,
	EntityNotifications,
	EntityAccount,
}

// ParseEntity validates an entity name.
func ParseEntity(v string) (Entity, error) {
	for _, e := range Entities {
		if string(e) == v {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown entity %q", v)
}
