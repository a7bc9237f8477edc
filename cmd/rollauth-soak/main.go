// rollauth-soak drives many concurrent roll-ins against a fake provider and
// checks that every user ends with one session and no poll task leaks.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	rollAuth "github.com/MrEthical07/rollAuth"
	"github.com/MrEthical07/rollAuth/internal/notify"
	"github.com/MrEthical07/rollAuth/internal/provider/providertest"
)

func main() {
	var (
		users       int
		starts      int
		concurrency int
		after       int
		redisAddr   string
		drain       time.Duration
	)
	flagSet := pflag.NewFlagSet("rollauth-soak", pflag.ContinueOnError)
	flagSet.IntVar(&users, "users", 500, "number of distinct chat users")
	flagSet.IntVar(&starts, "starts", 3, "start_auth events per user, issued concurrently")
	flagSet.IntVar(&concurrency, "concurrency", 64, "number of concurrent workers")
	flagSet.IntVar(&after, "complete-after", 3, "exchange attempts before the fake provider completes")
	flagSet.StringVar(&redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flagSet.DurationVar(&drain, "drain-timeout", 30*time.Second, "how long to wait for polls to finish")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	if users <= 0 || starts <= 0 || concurrency <= 0 || after <= 0 {
		fmt.Fprintln(os.Stderr, "users, starts, concurrency, and complete-after must be > 0")
		os.Exit(2)
	}

	if err := run(users, starts, concurrency, after, redisAddr, drain); err != nil {
		fmt.Fprintf(os.Stderr, "soak failed: %v\n", err)
		os.Exit(1)
	}
}

func run(users, starts, concurrency, after int, redisAddr string, drain time.Duration) error {
	ctx := context.Background()

	addr := redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer client.Close()

	fake := providertest.New(after)
	defer fake.Close()

	cfg := rollAuth.DefaultConfig()
	cfg.Provider.BaseURL = fake.URL()
	cfg.Polling.Interval = 5 * time.Millisecond
	cfg.Store.RedisPrefix = "soak:"
	cfg.Metrics.Enabled = true

	engine, err := rollAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithNotifier(notify.NewRecorder()).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	total := users * starts
	order := make([]int, total)
	for i := range order {
		order[i] = i % users
	}
	rand.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	var (
		cursor    int64
		pollsOK   int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, total)
	)

	fmt.Printf("issuing %d start_auth events for %d users...\n", total, users)
	begin := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for w := 0; w < concurrency; w++ {
		group.Go(func() error {
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= total {
					return nil
				}
				user := strconv.Itoa(100000 + order[i])
				t0 := time.Now()
				res, err := engine.StartAuth(groupCtx, user, "en")
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else if res.State == rollAuth.StatePollingStarted {
					atomic.AddInt64(&pollsOK, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	issued := time.Since(begin)

	deadline := time.Now().Add(drain)
	for engine.ActivePolls() > 0 {
		if time.Now().After(deadline) {
			return fmt.Errorf("%d poll tasks still active after %s", engine.ActivePolls(), drain)
		}
		time.Sleep(10 * time.Millisecond)
	}
	settled := time.Since(begin)

	missing := 0
	for u := 0; u < users; u++ {
		n, err := client.Exists(ctx, "soak:session_token:"+strconv.Itoa(100000+u)).Result()
		if err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if n == 0 {
			missing++
		}
	}

	snap := engine.MetricsSnapshot()
	finished := snap.Counters[rollAuth.MetricPollSucceeded] +
		snap.Counters[rollAuth.MetricPollCancelled] +
		snap.Counters[rollAuth.MetricPollExhausted] +
		snap.Counters[rollAuth.MetricPollFailed]

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Println("---- results ----")
	fmt.Printf("start_auth: events=%d failures=%d polls=%d issued_in=%s settled_in=%s p50=%s p99=%s\n",
		total,
		failures,
		pollsOK,
		issued.Round(time.Millisecond),
		settled.Round(time.Millisecond),
		percentile(latencies, 50).Round(time.Microsecond),
		percentile(latencies, 99).Round(time.Microsecond),
	)
	fmt.Printf("polls: succeeded=%d cancelled=%d exhausted=%d failed=%d\n",
		snap.Counters[rollAuth.MetricPollSucceeded],
		snap.Counters[rollAuth.MetricPollCancelled],
		snap.Counters[rollAuth.MetricPollExhausted],
		snap.Counters[rollAuth.MetricPollFailed],
	)

	if missing > 0 {
		return fmt.Errorf("%d users ended without a session", missing)
	}
	if finished != uint64(pollsOK) {
		return fmt.Errorf("started %d polls but %d finished", pollsOK, finished)
	}
	return nil
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}
