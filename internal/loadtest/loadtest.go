// Package loadtest drives concurrent registrations against a running server
// and checks that the capacity limit held.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrRateLimited is returned when the server answers 429 during setup. Every
// run makes one write per user, so the server under test should run with
// RATE_LIMIT_WRITE=0.
var ErrRateLimited = errors.New("rate limited by server (set RATE_LIMIT_WRITE=0 on the server for load runs)")

// Config describes one rush: Users distinct users race for Capacity seats,
// with at most Concurrency requests in flight.
type Config struct {
	Capacity    int
	Users       int
	Concurrency int
	Timeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 5
	}
	if c.Users <= 0 {
		c.Users = 20
	}
	if c.Concurrency <= 0 {
		c.Concurrency = c.Users
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

type Tester struct {
	baseURL string
	client  *http.Client
	now     func() time.Time
}

func NewTester(baseURL string, client *http.Client) *Tester {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Tester{baseURL: baseURL, client: client, now: time.Now}
}

// Statistics collects the outcome of every registration attempt.
type Statistics struct {
	mu sync.Mutex

	EventID       int64
	Capacity      int
	Attempts      int
	Registered    int
	ByStatus      map[int]int
	Transport     int
	StatsReported int
	responseTimes []int64
	startTime     time.Time
	endTime       time.Time
}

// Overbooked reports whether more users got a seat than the event holds,
// either by response count or by the server's own statistics.
func (s *Statistics) Overbooked() bool {
	return s.Registered > s.Capacity || s.StatsReported > s.Capacity
}

// Run creates an event and its users, then fires every registration at once.
func (t *Tester) Run(ctx context.Context, cfg Config) (*Statistics, error) {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	eventID, err := t.createEvent(ctx, cfg.Capacity)
	if err != nil {
		return nil, err
	}

	userIDs := make([]int64, 0, cfg.Users)
	runID := t.now().UnixNano()
	for i := 0; i < cfg.Users; i++ {
		id, err := t.createUser(ctx, runID, i)
		if err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}

	stats := &Statistics{EventID: eventID, Capacity: cfg.Capacity, ByStatus: map[int]int{}}
	stats.startTime = time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			began := time.Now()
			status, err := t.register(gctx, eventID, userID)
			stats.record(status, err, time.Since(began).Milliseconds())
			return nil
		})
	}
	_ = g.Wait()
	stats.endTime = time.Now()

	reported, err := t.registrationCount(ctx, eventID)
	if err != nil {
		return stats, err
	}
	stats.StatsReported = reported
	return stats, nil
}

func (s *Statistics) record(status int, err error, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Attempts++
	if err != nil {
		s.Transport++
		return
	}
	s.responseTimes = append(s.responseTimes, durationMs)
	s.ByStatus[status]++
	if status == http.StatusCreated {
		s.Registered++
	}
}

func (t *Tester) createEvent(ctx context.Context, capacity int) (int64, error) {
	var body struct {
		Data struct {
			EventID int64 `json:"event_id"`
		} `json:"data"`
	}
	payload := map[string]any{
		"title":     "Load test " + strconv.FormatInt(t.now().Unix(), 10),
		"date_time": t.now().Add(24 * time.Hour).UTC().Format(time.RFC3339),
		"location":  "Load test hall",
		"capacity":  capacity,
	}
	if _, err := t.do(ctx, http.MethodPost, "/api/events", payload, http.StatusCreated, &body); err != nil {
		return 0, fmt.Errorf("create event: %w", err)
	}
	return body.Data.EventID, nil
}

func (t *Tester) createUser(ctx context.Context, runID int64, n int) (int64, error) {
	var body struct {
		Data struct {
			ID int64 `json:"id"`
		} `json:"data"`
	}
	payload := map[string]any{
		"name":  fmt.Sprintf("Load User %d", n),
		"email": fmt.Sprintf("load-%d-%d@example.com", runID, n),
	}
	if _, err := t.do(ctx, http.MethodPost, "/api/users", payload, http.StatusCreated, &body); err != nil {
		return 0, fmt.Errorf("create user %d: %w", n, err)
	}
	return body.Data.ID, nil
}

func (t *Tester) register(ctx context.Context, eventID, userID int64) (int, error) {
	path := fmt.Sprintf("/api/events/%d/register", eventID)
	return t.do(ctx, http.MethodPost, path, map[string]any{"user_id": userID}, 0, nil)
}

func (t *Tester) registrationCount(ctx context.Context, eventID int64) (int, error) {
	var body struct {
		Data struct {
			TotalRegistrations int `json:"total_registrations"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/api/events/%d/stats", eventID)
	if _, err := t.do(ctx, http.MethodGet, path, nil, http.StatusOK, &body); err != nil {
		return 0, fmt.Errorf("event stats: %w", err)
	}
	return body.Data.TotalRegistrations, nil
}

// do sends a JSON request. A non-zero want makes any other status an error;
// out, when set, receives the decoded body.
func (t *Tester) do(ctx context.Context, method, path string, payload any, want int, out any) (int, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if want != 0 && resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
	}
	if want != 0 && resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Report renders a human-readable summary.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report bytes.Buffer
	report.WriteString("\n")
	report.WriteString("═══════════════════════════════════════════════════════════════\n")
	report.WriteString("                  REGISTRATION RUSH RESULTS                     \n")
	report.WriteString("═══════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&report, "Event:           %d (capacity %d)\n", s.EventID, s.Capacity)
	fmt.Fprintf(&report, "Duration:        %s\n", s.endTime.Sub(s.startTime).Round(time.Millisecond))
	fmt.Fprintf(&report, "Attempts:        %d\n", s.Attempts)
	fmt.Fprintf(&report, "Registered:      %d\n", s.Registered)
	fmt.Fprintf(&report, "Server count:    %d\n", s.StatsReported)
	if s.Transport > 0 {
		fmt.Fprintf(&report, "Transport errs:  %d\n", s.Transport)
	}
	report.WriteString("\n")

	if len(s.responseTimes) > 0 {
		p50, p95, p99 := percentiles(s.responseTimes)
		report.WriteString("Response Times (ms):\n")
		fmt.Fprintf(&report, "  p50:      %d\n", p50)
		fmt.Fprintf(&report, "  p95:      %d\n", p95)
		fmt.Fprintf(&report, "  p99:      %d\n\n", p99)
	}

	if len(s.ByStatus) > 0 {
		codes := make([]int, 0, len(s.ByStatus))
		for code := range s.ByStatus {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		report.WriteString("Responses by Status Code:\n")
		for _, code := range codes {
			fmt.Fprintf(&report, "  %d: %d\n", code, s.ByStatus[code])
		}
		report.WriteString("\n")
	}

	if limited := s.ByStatus[http.StatusTooManyRequests]; limited > 0 {
		fmt.Fprintf(&report, "WARNING: %d registrations were rate limited; run the server with RATE_LIMIT_WRITE=0\n", limited)
	}
	if s.Registered > s.Capacity || s.StatsReported > s.Capacity {
		report.WriteString("RESULT: OVERBOOKED\n")
	} else {
		report.WriteString("RESULT: capacity held\n")
	}
	report.WriteString("═══════════════════════════════════════════════════════════════\n")
	return report.String()
}

func percentiles(times []int64) (p50, p95, p99 int64) {
	sorted := make([]int64, len(times))
	copy(sorted, times)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	at := func(p float64) int64 {
		index := int(float64(len(sorted)) * p)
		if index >= len(sorted) {
			index = len(sorted) - 1
		}
		return sorted[index]
	}
	return at(0.50), at(0.95), at(0.99)
}
