// Package testutil provides an in-process fake of the code registry.
package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type Item struct {
	Code string
	Name string
}

type RegistryConfig struct {
	Counties []Item
	// town lists keyed by county code, counties without an entry answer
	// with an empty list
	Towns map[string][]Item
}

// DefaultRegistry holds a few counties and some towns of 新北市.
var DefaultRegistry = RegistryConfig{
	Counties: []Item{
		{Code: "A", Name: "臺北市"},
		{Code: "C", Name: "基隆市"},
		{Code: "F", Name: "新北市"},
	},
	Towns: map[string][]Item{
		"F": {
			{Code: "F01", Name: "新莊區"},
			{Code: "F02", Name: "林口區"},
		},
	},
}

type Registry struct {
	*httptest.Server

	config RegistryConfig

	lock     sync.Mutex
	requests int
}

func NewRegistry(t testing.TB, config RegistryConfig) *Registry {
	r := &Registry{config: config}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ListCounty", r.handleCounties)
	mux.HandleFunc("GET /ListTown/{county}", r.handleTowns)

	r.Server = httptest.NewServer(mux)
	t.Cleanup(r.Close)
	return r
}

// Requests returns how many requests the registry has answered.
func (r *Registry) Requests() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.requests
}

func (r *Registry) count() {
	r.lock.Lock()
	r.requests++
	r.lock.Unlock()
}

func writeItems(w http.ResponseWriter, level string, items []Item) {
	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	fmt.Fprintf(&body, "<%sItems>", level)
	for _, item := range items {
		fmt.Fprintf(
			&body, "<%[1]sItem><%[1]scode>%[2]s</%[1]scode><%[1]sname>%[3]s</%[1]sname></%[1]sItem>",
			level, html.EscapeString(item.Code), html.EscapeString(item.Name),
		)
	}
	fmt.Fprintf(&body, "</%sItems>", level)

	w.Header().Set("content-type", "application/xml; charset=utf-8")
	w.Write([]byte(body.String()))
}

func (r *Registry) handleCounties(w http.ResponseWriter, req *http.Request) {
	r.count()
	writeItems(w, "county", r.config.Counties)
}

func (r *Registry) handleTowns(w http.ResponseWriter, req *http.Request) {
	r.count()
	writeItems(w, "town", r.config.Towns[req.PathValue("county")])
}
