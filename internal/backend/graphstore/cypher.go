package graphstore

const fetchProfileCypher = `
MATCH (u:WalletUser {userId: $userId})-[:HAS_PROFILE]->(p:Profile)
RETURN p {.*, userId: u.userId} AS row
LIMIT 1
`

const listCardsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:OWNS]->(c:Card)
RETURN c {.*, userId: u.userId} AS row
ORDER BY c.createdAt DESC
`

const listRecipientsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:PAYS]->(r:Recipient)
RETURN r {.*, userId: u.userId} AS row
ORDER BY r.createdAt DESC
`

const listTransactionsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:MADE]->(t:WalletTransaction)
RETURN t {.*, userId: u.userId} AS row
ORDER BY t.createdAt DESC
`

const fetchSettingsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:PREFERS]->(s:UserSettings)
RETURN s {.*, userId: u.userId} AS row
LIMIT 1
`

const listNotificationsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:RECEIVED]->(n:Notification)
RETURN n {.*, userId: u.userId} AS row
ORDER BY n.createdAt DESC
`

const fetchAccountCypher = `
MATCH (u:WalletUser {userId: $userId})-[:HOLDS]->(a:Account)
RETURN a {.*, userId: u.userId} AS row
LIMIT 1
`

const clearDefaultCardsCypher = `
MATCH (u:WalletUser {userId: $userId})-[:OWNS]->(c:Card)
WHERE c.isDefault = true
SET c.isDefault = false
`

const insertCardCypher = `
MERGE (u:WalletUser {userId: $userId})
CREATE (c:Card {cardId: $cardId})
SET c += $props
MERGE (u)-[:OWNS]->(c)
RETURN c {.*, userId: u.userId} AS row
`

const insertRecipientCypher = `
MERGE (u:WalletUser {userId: $userId})
CREATE (r:Recipient {recipientId: $recipientId})
SET r += $props
MERGE (u)-[:PAYS]->(r)
RETURN r {.*, userId: u.userId} AS row
`

const insertTransactionCypher = `
MERGE (u:WalletUser {userId: $userId})
CREATE (t:WalletTransaction {transactionId: $transactionId})
SET t += $props
MERGE (u)-[:MADE]->(t)
WITH u, t
OPTIONAL MATCH (u)-[:OWNS]->(c:Card {cardId: $cardId})
FOREACH (_ IN CASE WHEN c IS NULL THEN [] ELSE [1] END | MERGE (t)-[:CHARGED_TO]->(c))
WITH u, t
OPTIONAL MATCH (u)-[:PAYS]->(r:Recipient {recipientId: $recipientId})
FOREACH (_ IN CASE WHEN r IS NULL THEN [] ELSE [1] END | MERGE (t)-[:SENT_TO]->(r))
RETURN t {.*, userId: u.userId} AS row
`

const upsertProfileCypher = `
MERGE (u:WalletUser {userId: $userId})
MERGE (u)-[:HAS_PROFILE]->(p:Profile)
ON CREATE SET p.createdAt = $now
SET p += $props
RETURN p {.*, userId: u.userId} AS row
`

const upsertSettingsCypher = `
MERGE (u:WalletUser {userId: $userId})
MERGE (u)-[:PREFERS]->(s:UserSettings)
ON CREATE SET s.notificationsEnabled = true,
	s.pushTokens = [],
	s.language = 'en',
	s.theme = 'system',
	s.biometricEnabled = false,
	s.weeklyDigest = false
SET s += $props
RETURN s {.*, userId: u.userId} AS row
`

const upsertAccountCypher = `
MERGE (u:WalletUser {userId: $userId})
MERGE (u)-[:HOLDS]->(a:Account)
ON CREATE SET a.accountId = $accountId
SET a += $props
RETURN a {.*, userId: u.userId} AS row
`

const markNotificationReadCypher = `
MATCH (u:WalletUser {userId: $userId})-[:RECEIVED]->(n:Notification {notificationId: $notificationId})
SET n.read = true
`

const insertNotificationCypher = `
MERGE (u:WalletUser {userId: $userId})
MERGE (n:Notification {notificationId: $notificationId})
SET n += $props
MERGE (u)-[:RECEIVED]->(n)
RETURN n {.*, userId: u.userId} AS row
`
