package graph

import (
	"context"
	"strings"
	"sync"
)

// Responder produces the result for a scripted query.
type Responder func(params map[string]any) (Result, error)

// ExecutedQuery captures a cypher statement and parameters executed against the graph.
type ExecutedQuery struct {
	Write  bool
	Query  string
	Params map[string]any
}

type script struct {
	fragment string
	respond  Responder
}

// ScriptedClient is an in-process Client for tests. Each query is answered
// by the first responder whose fragment occurs in the cypher text; queries
// matching none return an empty result.
type ScriptedClient struct {
	mu           sync.Mutex
	scripts      []script
	calls        []ExecutedQuery
	err          error
	connectivity error
}

// NewScriptedClient returns a client with no scripts.
func NewScriptedClient() *ScriptedClient {
	return &ScriptedClient{}
}

// On registers respond for queries containing fragment.
func (m *ScriptedClient) On(fragment string, respond Responder) *ScriptedClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts = append(m.scripts, script{fragment: fragment, respond: respond})
	return m
}

// Returning is a Responder yielding fixed records.
func Returning(records ...Record) Responder {
	return func(map[string]any) (Result, error) {
		return Result{Records: records}, nil
	}
}

// WithError configures the client to return the provided error for subsequent calls.
func (m *ScriptedClient) WithError(err error) *ScriptedClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithConnectivityError forces VerifyConnectivity to return the supplied error.
func (m *ScriptedClient) WithConnectivityError(err error) *ScriptedClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectivity = err
	return m
}

func (m *ScriptedClient) ExecuteWrite(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(true, cypher, params)
}

func (m *ScriptedClient) ExecuteRead(_ context.Context, cypher string, params map[string]any) (Result, error) {
	return m.execute(false, cypher, params)
}

func (m *ScriptedClient) execute(write bool, cypher string, params map[string]any) (Result, error) {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return Result{}, err
	}
	m.calls = append(m.calls, ExecutedQuery{Write: write, Query: cypher, Params: cloneMap(params)})
	var respond Responder
	for _, s := range m.scripts {
		if strings.Contains(cypher, s.fragment) {
			respond = s.respond
			break
		}
	}
	m.mu.Unlock()

	if respond == nil {
		return Result{}, nil
	}
	return respond(params)
}

func (m *ScriptedClient) VerifyConnectivity(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectivity
}

func (m *ScriptedClient) Close(context.Context) error {
	return nil
}

// Calls returns a snapshot of executed queries in order.
func (m *ScriptedClient) Calls() []ExecutedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ExecutedQuery(nil), m.calls...)
}

// Writes returns the executed write queries.
func (m *ScriptedClient) Writes() []ExecutedQuery {
	var out []ExecutedQuery
	for _, c := range m.Calls() {
		if c.Write {
			out = append(out, c)
		}
	}
	return out
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
