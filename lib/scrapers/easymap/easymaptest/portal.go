// Package easymaptest provides an in-process fake of the easymap portal
// for tests.
package easymaptest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

const DefaultTokenPage = `<html><body>
<form>
<input type="hidden" name="csrf" value="abc123" />
<input type="hidden" name="token" value="T1" />
</form>
</body></html>`

type Config struct {
	// city code answered for every point, empty means the field is omitted
	CityCode string
	// town code answered by the door info endpoint
	TownCode string
	// replaces the default token page when set
	TokenPage string
	// replaces the default door info json when set
	DoorInfoBody string
	// the index page does not hand out a session cookie
	NoSessionCookie bool
	// forces a status code for a path
	Status map[string]int
}

// Portal is a fake portal that enforces the session cookie and the token
// fields like the real one.
type Portal struct {
	*httptest.Server

	config Config

	lock         sync.Mutex
	sessions     int
	issuedTokens map[string]bool
	requests     map[string]int
	doorInfoForm url.Values
}

func NewPortal(t testing.TB, config Config) *Portal {
	if config.TokenPage == "" {
		config.TokenPage = DefaultTokenPage
	}

	p := &Portal{
		config:       config,
		issuedTokens: map[string]bool{},
		requests:     map[string]int{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/Index", p.handleIndex)
	mux.HandleFunc("/Query_json_getPointCity", p.withSession(p.handlePointCity))
	mux.HandleFunc("/pages/setToken.jsp", p.withSession(p.handleSetToken))
	mux.HandleFunc("/Door_json_getDoorInfoByXY", p.withSession(p.handleDoorInfo))

	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

// Requests returns how many requests were made to path.
func (p *Portal) Requests(path string) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.requests[path]
}

// DoorInfoForm returns the form of the last door info request.
func (p *Portal) DoorInfoForm() url.Values {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.doorInfoForm
}

func (p *Portal) count(r *http.Request) (forced int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.requests[r.URL.Path]++
	return p.config.Status[r.URL.Path]
}

func (p *Portal) handleIndex(w http.ResponseWriter, r *http.Request) {
	forced := p.count(r)
	if !p.config.NoSessionCookie {
		p.lock.Lock()
		p.sessions++
		id := fmt.Sprintf("session-%d", p.sessions)
		p.lock.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: id, Path: "/"})
	}
	if forced != 0 {
		w.WriteHeader(forced)
	}
	w.Write([]byte("<html><body>easymap</body></html>"))
}

func (p *Portal) withSession(next func(w http.ResponseWriter, r *http.Request, session string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		forced := p.count(r)
		if forced != 0 {
			http.Error(w, http.StatusText(forced), forced)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cookie, err := r.Cookie("JSESSIONID")
		if err != nil || cookie.Value == "" {
			http.Error(w, "no session", http.StatusForbidden)
			return
		}
		err = r.ParseForm()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		next(w, r, cookie.Value)
	}
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("content-type", "application/json;charset=UTF-8")
	json.NewEncoder(w).Encode(value)
}

func (p *Portal) handlePointCity(w http.ResponseWriter, r *http.Request, _ string) {
	if r.PostForm.Get("wgs84x") == "" || r.PostForm.Get("wgs84y") == "" {
		http.Error(w, "missing coordinates", http.StatusBadRequest)
		return
	}
	if p.config.CityCode == "" {
		writeJSON(w, map[string]any{"status": "notfound"})
		return
	}
	writeJSON(w, map[string]any{"cityCode": p.config.CityCode, "status": "ok"})
}

func (p *Portal) handleSetToken(w http.ResponseWriter, r *http.Request, session string) {
	p.lock.Lock()
	p.issuedTokens[session] = true
	p.lock.Unlock()

	w.Header().Set("content-type", "text/html;charset=UTF-8")
	w.Write([]byte(p.config.TokenPage))
}

func (p *Portal) handleDoorInfo(w http.ResponseWriter, r *http.Request, session string) {
	p.lock.Lock()
	issued := p.issuedTokens[session]
	p.doorInfoForm = r.PostForm
	p.lock.Unlock()

	if !issued || r.PostForm.Get("token") == "" {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	if p.config.DoorInfoBody != "" {
		w.Header().Set("content-type", "application/json;charset=UTF-8")
		w.Write([]byte(p.config.DoorInfoBody))
		return
	}
	writeJSON(w, map[string]any{
		"towncode": p.config.TownCode,
		"city":     r.PostForm.Get("city"),
		"sectno":   "0193",
	})
}
