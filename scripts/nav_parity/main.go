package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"
)

// endpoints compared for every user. %s is the user id.
var endpoints = []string{
	"/api/users/%s/navigation",
	"/api/users/%s/permissions",
}

type backend struct {
	name  string
	base  string
	token string
}

type comparison struct {
	Path        string
	Status      [2]int
	StatusMatch bool
	BodyMatch   bool
	Error       error
	Duration    [2]time.Duration
}

func main() {
	var (
		current, legacy backend
		users           string
		timeout         time.Duration
	)

	flag.StringVar(&current.base, "base", "http://localhost:8080", "Hospital admin API base URL")
	flag.StringVar(&current.token, "token", os.Getenv("PARITY_TOKEN"), "Bearer token for the API")
	flag.StringVar(&legacy.base, "legacy-base", "http://localhost:3000", "Legacy portal base URL")
	flag.StringVar(&legacy.token, "legacy-token", os.Getenv("PARITY_LEGACY_TOKEN"), "Bearer token for the legacy portal")
	flag.StringVar(&users, "users", "", "Comma separated user ids to compare")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()
	current.name, legacy.name = "api", "legacy"

	ids := splitIDs(users)
	if len(ids) == 0 {
		log.Fatal("no users given, pass -users=id1,id2")
	}

	client := &http.Client{Timeout: timeout}
	var (
		results []comparison
		diffs   int
	)
	for _, id := range ids {
		for _, pattern := range endpoints {
			res := compare(client, current, legacy, fmt.Sprintf(pattern, id))
			if res.Error != nil || !res.StatusMatch || !res.BodyMatch {
				diffs++
			}
			results = append(results, res)
		}
	}

	printReport(results)
	fmt.Printf("Users: %d, Diffs: %d\n", len(ids), diffs)
	if diffs > 0 {
		os.Exit(1)
	}
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func compare(client *http.Client, current, legacy backend, path string) comparison {
	res := comparison{Path: path}
	bodies := [2][]byte{}
	for i, b := range []backend{current, legacy} {
		status, body, dur, err := fetch(client, b, path)
		if err != nil {
			res.Error = fmt.Errorf("%s request failed: %w", b.name, err)
			return res
		}
		res.Status[i], res.Duration[i], bodies[i] = status, dur, body
	}
	res.StatusMatch = res.Status[0] == res.Status[1]

	a, err := payload(bodies[0])
	if err != nil {
		res.Error = fmt.Errorf("decode %s body: %w", current.name, err)
		return res
	}
	b, err := payload(bodies[1])
	if err != nil {
		res.Error = fmt.Errorf("decode %s body: %w", legacy.name, err)
		return res
	}
	res.BodyMatch = reflect.DeepEqual(canonical(a), canonical(b))
	return res
}

func fetch(client *http.Client, b backend, path string) (int, []byte, time.Duration, error) {
	if client == nil {
		return 0, nil, 0, errors.New("nil client")
	}
	req, err := http.NewRequest(http.MethodGet, strings.TrimRight(b.base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, 0, err
	}
	return resp.StatusCode, body, time.Since(start), nil
}

// payload unwraps the {"data": ...} envelope when present so enveloped and bare bodies compare.
func payload(body []byte) (interface{}, error) {
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	if obj, ok := decoded.(map[string]interface{}); ok {
		if data, exists := obj["data"]; exists {
			return data, nil
		}
	}
	return decoded, nil
}

// canonical sorts arrays of objects by id or documentId so ordering differences between
// backends do not count as diffs. Integral floats become int64.
func canonical(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			val[k] = canonical(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = canonical(inner)
		}
		sort.SliceStable(val, func(i, j int) bool { return sortKey(val[i]) < sortKey(val[j]) })
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return val
	}
}

func sortKey(v interface{}) string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	for _, key := range []string{"documentId", "id"} {
		if s, ok := obj[key].(string); ok {
			return s
		}
	}
	return ""
}

func printReport(results []comparison) {
	fmt.Println("Navigation Parity Report")
	fmt.Println("========================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if !res.StatusMatch || !res.BodyMatch {
			status = "DIFF"
		}
		fmt.Printf("[%s] GET %s\n", status, res.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  API: %d (%s) | Legacy: %d (%s)\n", res.Status[0], res.Duration[0], res.Status[1], res.Duration[1])
		fmt.Printf("  Status match: %t | Body match: %t\n", res.StatusMatch, res.BodyMatch)
	}
}
