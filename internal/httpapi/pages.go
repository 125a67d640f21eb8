package httpapi

import (
	"fmt"
	"html"
	"net/http"

	"rfphub.org/internal/auth"
)

// pageTitles maps browser-facing paths to their shell titles. The SPA
// bundle takes over rendering; the policy middleware has already run by
// the time these execute.
var pageTitles = map[string]string{
	"/":             "RFP Hub",
	"/dashboard":    "Dashboard",
	"/login":        "Sign in",
	"/signup":       "Create account",
	"/unauthorized": "Access denied",
	"/admin":        "Administration",
	"/hr":           "HR",
	"/finance":      "Finance",
	"/sales":        "Sales",
}

func (a *API) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	title, ok := pageTitles[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Path == "/unauthorized" {
		if page := r.URL.Query().Get("page"); page != "" {
			title = fmt.Sprintf("Access denied: %s", page)
		}
	}

	var who string
	if claims, ok := auth.ClaimsFromContext(r.Context()); ok {
		who = claims.Email
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html>\n<html><head><title>%s</title></head><body>", html.EscapeString(title))
	fmt.Fprintf(w, "<h1>%s</h1>", html.EscapeString(title))
	if who != "" {
		fmt.Fprintf(w, "<p>Signed in as %s</p>", html.EscapeString(who))
	}
	fmt.Fprint(w, `<div id="app"></div></body></html>`)
}
