package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

func restartCmd(args []string) {
	fs := flag.NewFlagSet("restart", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	post(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/restart")
}

func playersCmd(args []string) {
	fs := flag.NewFlagSet("players", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	n := fs.Int("n", 0, "active player count")
	_ = fs.Parse(args)

	if *n <= 0 {
		fmt.Fprintln(os.Stderr, "missing -n")
		os.Exit(2)
	}
	q := url.Values{"n": {strconv.Itoa(*n)}}
	post(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/players?" + q.Encode())
}

func post(u string) {
	req, _ := http.NewRequest(http.MethodPost, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
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
