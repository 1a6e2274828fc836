// Command bench runs a synthetic workload against the work-stealing cache
// and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stealcache/stealcache/cache"
	pmet "github.com/stealcache/stealcache/metrics/prom"
	"github.com/stealcache/stealcache/placement"
)

func main() {
	// ---- Flags ----
	var (
		workers   = flag.Int("cache_workers", 4, "cache worker (partition) count")
		norm      = flag.Int("norm", 100_000, "load normalization divisor")
		threshold = flag.Float64("threshold", 0.75, "load balance threshold")
		rf        = flag.Int("rf", 0, "replication factor (0 = replicate to all)")
		adaptive  = flag.Bool("adaptive", false, "route primaries through a consistent-hash ring")
		predict   = flag.Bool("predict", false, "enable frequency-based placement prediction")

		loaders  = flag.Int("loaders", 2*runtime.GOMAXPROCS(0), "load-generator goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 100_000, "preload entries")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "stealcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build cache ----
	opt := cache.Options[string, string]{
		Config: cache.Config{
			LoadNormalization:    *norm,
			LoadBalanceThreshold: *threshold,
			ReplicationFactor:    *rf,
			AdaptivePartitioning: *adaptive,
			PredictivePlacement:  *predict,
			RebalanceInterval:    time.Second,
			CleanupInterval:      30 * time.Second,
		},
		Metrics: metrics,
	}
	if *predict {
		opt.Predictor = placement.NewFrequency[string](8, 2)
	}
	c := cache.New[string, string](opt)
	defer func() { _ = c.Close() }()

	for i := 0; i < *workers; i++ {
		if err := c.RegisterWorker("worker-" + strconv.Itoa(i)); err != nil {
			log.Fatalf("register worker: %v", err)
		}
	}
	if err := c.Start(); err != nil {
		log.Fatalf("start background loops: %v", err)
	}

	// ---- Preload to get a realistic hit-rate ----
	for i := 0; i < *preload; i++ {
		k := "k:" + strconv.Itoa(i)
		if err := c.Insert(k, "v"+strconv.Itoa(i), 0); err != nil {
			log.Fatalf("preload: %v", err)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	loadersN := *loaders
	if loadersN <= 0 {
		loadersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(loadersN)
	for w := 0; w < loadersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each goroutine gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					if _, ok := c.Get(keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					k := keyByZipf()
					_ = c.Insert(k, "v"+strconv.Itoa(localR.Int()), 0)
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("workers=%d norm=%d threshold=%v rf=%d adaptive=%v predict=%v loaders=%d keys=%d dur=%v seed=%d\n",
		*workers, *norm, *threshold, *rf, *adaptive, *predict, loadersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)

	st := c.Stats()
	fmt.Printf("entries=%d  evictions=%d  uptime=%ds\n", st.TotalEntries, st.TotalEvictions, st.UptimeSeconds)
	for _, w := range c.Workers() {
		fmt.Printf("  %-12s entries=%-8d load=%.3f active=%v\n", w.ID, w.Entries, w.LoadFactor, w.Active)
	}
}
