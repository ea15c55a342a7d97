// Command bench runs a synthetic workload against the cache engine and
// exposes optional pprof/Prometheus endpoints.
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

	"github.com/thebanglabrief/thebanglabrief/cache"
	"github.com/thebanglabrief/thebanglabrief/maintenance"
	"github.com/thebanglabrief/thebanglabrief/metrics/prom"
	"github.com/thebanglabrief/thebanglabrief/store"
	"github.com/thebanglabrief/thebanglabrief/store/leveldb"
	"github.com/thebanglabrief/thebanglabrief/store/memorydb"
)

func main() {
	// ---- Flags ----
	var (
		storePath = flag.String("store", "", "leveldb directory; empty = in-memory store")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 100_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = keys/2)")

		valSize = flag.Int("valsize", 256, "payload bytes per entry")
		ttl     = flag.Duration("ttl", 0, "per-entry ttl (0 = never expires)")

		maxBytes = flag.Int64("maxbytes", 64<<20, "size ceiling enforced by the sweeper")
		sweep    = flag.Duration("sweep", 0, "sweep interval (0 = no sweeper)")

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
	metrics := prom.NewCache(nil, "brief", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build engine ----
	var db store.Store
	if *storePath == "" {
		db = memorydb.New()
	} else {
		ldb, err := leveldb.New(*storePath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer ldb.Close()
		db = ldb
	}
	e := cache.New(cache.Options{Store: db, Metrics: metrics})

	payload := make([]byte, *valSize)
	for i := range payload {
		payload[i] = byte('a' + i%26)
	}

	// ---- Preload half the keyspace to get a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *keys / 2
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		if err := e.Put(cache.NamespaceGeneral, k, payload, *ttl); err != nil {
			log.Fatalf("preload: %v", err)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	ttlVal := *ttl
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// Optional concurrent sweeper, the way the app runs it.
	if *sweep > 0 {
		s := maintenance.New(maintenance.Options{
			Cache:    e,
			Interval: *sweep,
			MaxBytes: *maxBytes,
		})
		go s.Run(ctx)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
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
					if _, ok := e.Get(cache.NamespaceGeneral, keyByZipf()); ok {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					if err := e.Put(cache.NamespaceGeneral, keyByZipf(), payload, ttlVal); err != nil {
						log.Fatalf("put: %v", err)
					}
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

	st := e.Stats()
	fmt.Printf("store=%s workers=%d keys=%d valsize=%d dur=%v seed=%d\n",
		storeName(*storePath), workersN, *keys, *valSize, elapsed.Round(time.Millisecond), seedBase)
	fmt.Printf("ops=%d (%.0f/s) reads=%d writes=%d hits=%d misses=%d hit-rate=%.1f%%\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN, hitsN, missesN, hitRate)
	fmt.Printf("entries=%d bytes=%d\n", st.Entries, st.Bytes)
}

func storeName(path string) string {
	if path == "" {
		return "memory"
	}
	return path
}
