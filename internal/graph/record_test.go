package graph

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRecordConversions(t *testing.T) {
	ts := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	rec := Record{
		"row": map[string]any{
			"name":    "Grace",
			"month":   int64(7),
			"default": true,
			"tokens":  []any{"a", 3, "b"},
			"at":      FormatTime(ts),
		},
	}
	row := rec.Map("row")
	if row.String("name") != "Grace" || row.Int("month") != 7 || !row.Bool("default") {
		t.Fatalf("unexpected scalar conversions: %+v", row)
	}
	if got := row.Strings("tokens"); len(got) != 2 || got[1] != "b" {
		t.Fatalf("expected non-string list items skipped, got %v", got)
	}
	if !row.Time("at").Equal(ts) {
		t.Fatalf("expected %s, got %s", ts, row.Time("at"))
	}
	if !row.Time("missing").IsZero() || row.Map("missing") != nil {
		t.Fatalf("expected zero values for absent keys")
	}
}

func TestScriptedClientMatchesFragments(t *testing.T) {
	client := NewScriptedClient().
		On("MATCH (c:Card)", Returning(Record{"id": "card-1"})).
		On("MERGE", func(params map[string]any) (Result, error) {
			return Result{Records: []Record{{"id": params["id"]}}}, nil
		})

	res, err := client.ExecuteRead(context.Background(), "MATCH (c:Card) RETURN c", nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if first, ok := res.First(); !ok || first.String("id") != "card-1" {
		t.Fatalf("unexpected read result %+v", res)
	}

	res, err = client.ExecuteWrite(context.Background(), "MERGE (n {id: $id})", map[string]any{"id": "n-1"})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if first, _ := res.First(); first.String("id") != "n-1" {
		t.Fatalf("expected responder to see params, got %+v", res)
	}
	if len(client.Writes()) != 1 || len(client.Calls()) != 2 {
		t.Fatalf("unexpected call log: %+v", client.Calls())
	}

	boom := errors.New("boom")
	client.WithError(boom)
	if _, err := client.ExecuteRead(context.Background(), "MATCH (c:Card)", nil); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
