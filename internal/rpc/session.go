// Package rpc implements the batchexecute RPC transport used by the Google
// Photos web client. A Session carries the short-lived tokens scraped from
// the app shell HTML; Client.Bootstrap obtains them and Client.Execute
// performs wrapped RPC calls, transparently re-bootstrapping when the
// session expires.
package rpc

import "encoding/json"

// Session holds the per-account session material extracted during bootstrap.
// All fields are opaque server tokens except Path, which is the URL prefix
// for batchexecute calls.
type Session struct {
	Account string `json:"account"`
	FSid    string `json:"fSid"`
	BL      string `json:"bl"`
	Path    string `json:"path"`
	AT      string `json:"at"`
	Rapt    string `json:"rapt,omitempty"`
}

// Valid reports whether the session carries the fields required to execute
// an RPC without bootstrapping first.
func (s Session) Valid() bool {
	return s.FSid != "" && s.BL != "" && s.AT != ""
}

// ToMap converts the session into a generic map for JSON column storage.
func (s Session) ToMap() map[string]any {
	data, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

// SessionFromMap rebuilds a session from its stored map form. Unknown keys
// are ignored; missing keys yield zero values.
func SessionFromMap(m map[string]any) Session {
	var s Session
	data, err := json.Marshal(m)
	if err != nil {
		return s
	}
	_ = json.Unmarshal(data, &s)
	return s
}
