package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func adminURL(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// call performs one admin request, prints the body and exits non-zero on a
// non-2xx status.
func call(method, u string, body any, timeout time.Duration) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			fmt.Fprintln(os.Stderr, "encode:", err)
			os.Exit(2)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, u, rd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(2)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodGet, adminURL(*baseURL, "/admin/v1/state", nil), nil, 5*time.Second)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	call(http.MethodPost, adminURL(*baseURL, "/admin/v1/snapshot", nil), nil, 10*time.Second)
}

func timeCmd(args []string) {
	fs := flag.NewFlagSet("time", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	set := fs.Int64("set", -1, "day time in ticks to set on every dimension")
	morning := fs.Int64("morning", -1, "jump to one tick before the given day starts")
	_ = fs.Parse(args)

	t := *set
	if *morning >= 0 {
		t = *morning*24000 - 1
	}
	if t < 0 && *morning < 0 {
		fmt.Fprintln(os.Stderr, "missing -set or -morning")
		os.Exit(2)
	}
	call(http.MethodPost, adminURL(*baseURL, "/admin/v1/time", nil), map[string]int64{"day_time": t}, 5*time.Second)
}

func putCmd(args []string) {
	fs := flag.NewFlagSet("put", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	level := fs.String("level", "overworld", "dimension id")
	pos := fs.String("pos", "", "container block position x,y,z")
	entity := fs.String("entity", "", "storage vehicle entity id (instead of -pos)")
	item := fs.String("item", "", "item id")
	count := fs.Int("count", 1, "item count")
	_ = fs.Parse(args)

	body := map[string]any{"level": *level, "item": *item, "count": *count}
	switch {
	case *entity != "":
		body["entity_id"] = *entity
	case *pos != "":
		p, err := parseVec3(*pos)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -pos:", err)
			os.Exit(2)
		}
		body["pos"] = p
	default:
		fmt.Fprintln(os.Stderr, "missing -pos or -entity")
		os.Exit(2)
	}
	call(http.MethodPost, adminURL(*baseURL, "/admin/v1/container", nil), body, 5*time.Second)
}

func chunkCmd(args []string) {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	level := fs.String("level", "", "dimension id (default: server default)")
	cx := fs.Int("cx", 0, "chunk x")
	cz := fs.Int("cz", 0, "chunk z")
	_ = fs.Parse(args)

	q := url.Values{}
	if *level != "" {
		q.Set("level", *level)
	}
	q.Set("cx", fmt.Sprint(*cx))
	q.Set("cz", fmt.Sprint(*cz))
	call(http.MethodGet, adminURL(*baseURL, "/admin/v1/chunk", q), nil, 5*time.Second)
}

func resetsCmd(args []string) {
	fs := flag.NewFlagSet("resets", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	limit := fs.Int("limit", 20, "rows to return, newest first")
	_ = fs.Parse(args)
	q := url.Values{"limit": {fmt.Sprint(*limit)}}
	call(http.MethodGet, adminURL(*baseURL, "/admin/v1/resets", q), nil, 5*time.Second)
}
