package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func statusCmd(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", os.Getenv("SZ_ADMIN_TOKEN"), "admin bearer token")
	_ = fs.Parse(args)

	exitWith(adminRequest(&http.Client{Timeout: 5 * time.Second}, http.MethodGet, *baseURL, "/admin/v1/session", *token, nil))
}

func sessionCmd(action string, args []string) {
	fs := flag.NewFlagSet(action, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	token := fs.String("token", os.Getenv("SZ_ADMIN_TOKEN"), "admin bearer token")
	participant := fs.String("participant", "", "id of the connected operator issuing the command")
	_ = fs.Parse(args)

	if strings.TrimSpace(*participant) == "" {
		fmt.Fprintln(os.Stderr, "missing -participant")
		os.Exit(2)
	}
	body, _ := json.Marshal(map[string]string{"participant_id": strings.TrimSpace(*participant)})
	exitWith(adminRequest(&http.Client{Timeout: 10 * time.Second}, http.MethodPost, *baseURL, "/admin/v1/session/"+action, *token, body))
}

// adminRequest returns the response body and whether the status was 2xx.
func adminRequest(cl *http.Client, method, baseURL, path, token string, body []byte) (string, bool, error) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		return "", false, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t := strings.TrimSpace(token); t != "" {
		req.Header.Set("Authorization", "Bearer "+t)
	}
	resp, err := cl.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return strings.TrimSpace(string(b)), resp.StatusCode/100 == 2, nil
}

func exitWith(out string, ok bool, err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	fmt.Println(out)
	if !ok {
		os.Exit(1)
	}
}
