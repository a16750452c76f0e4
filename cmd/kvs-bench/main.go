// Package main is a write/read throughput and integrity harness for the
// log-structured engine, run directly against a data directory (no
// server involved). It mirrors the checks the teacher's ad hoc
// tests/test.go ran by hand, adapted to the new engine's Set/Get API
// and JSON record format.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aether-kv/kvs/internal/engine"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "kvs-bench-*")
	if err != nil {
		log.Fatalf("failed to create scratch data dir: %v", err)
	}
	defer os.RemoveAll(dir)

	switch os.Args[1] {
	case "100k-write":
		test100kWrite(dir)
	case "overlapping":
		testOverlappingKey(dir)
	case "integrity":
		testIntegrity(dir)
	default:
		fmt.Printf("Unknown test: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: kvs-bench <test-name>")
	fmt.Println("\nAvailable tests:")
	fmt.Println("  100k-write  - Write 100,000 unique keys and measure performance")
	fmt.Println("  overlapping - Write the same key twice and confirm the latest value wins")
	fmt.Println("  integrity   - Write 100k keys, then randomly read 1,000 to verify integrity")
}

func openBenchStore(dir string) *engine.KvStore {
	store, err := engine.OpenKvStore(dir, 64<<20, 64<<10, 5*time.Second)
	if err != nil {
		log.Fatalf("failed to open engine: %v", err)
	}
	return store
}

func test100kWrite(dir string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Test 1: 100k Write Test (Speed & Integrity)")
	fmt.Println(strings.Repeat("=", 60))

	store := openBenchStore(dir)
	defer store.Close()

	const totalKeys = 100000
	start := time.Now()
	errs := 0

	fmt.Printf("Writing %d keys...\n", totalKeys)
	for i := 0; i < totalKeys; i++ {
		key := fmt.Sprintf("key_%d", i)
		value := fmt.Sprintf("value_%d", i)
		if err := store.Set(key, value); err != nil {
			errs++
			if errs <= 10 {
				fmt.Printf("ERROR: Set(%s) failed: %v\n", key, err)
			}
		}
		if (i+1)%10000 == 0 {
			rate := float64(i+1) / time.Since(start).Seconds()
			fmt.Printf("Progress: %d/%d keys written (%.2f keys/sec)\n", i+1, totalKeys, rate)
		}
	}

	elapsed := time.Since(start)
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Total time: %v\n", elapsed)
	fmt.Printf("Write rate: %.2f keys/second\n", totalKeys/elapsed.Seconds())
	fmt.Printf("Errors: %d\n", errs)

	if stat, err := os.Stat(filepath.Join(dir, "log")); err == nil {
		fmt.Printf("Log file size: %d bytes (%.2f MB)\n", stat.Size(), float64(stat.Size())/1024/1024)
	}

	scanned := len(store.Scan())
	fmt.Printf("Keys in memory (index): %d\n", scanned)
	if scanned != totalKeys {
		fmt.Printf("WARNING: index has %d keys, expected %d\n", scanned, totalKeys)
	}

	if errs > 0 {
		fmt.Printf("\nFAILED: %d errors occurred\n", errs)
		os.Exit(1)
	}
	fmt.Println("\nPASSED: all keys written successfully")
}

func testOverlappingKey(dir string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Test 2: Overlapping Key Test")
	fmt.Println(strings.Repeat("=", 60))

	store := openBenchStore(dir)
	defer store.Close()

	key, valueA, valueB := "key_1", "value_A", "value_B"

	fmt.Printf("Step 1: Set(%s, %q)\n", key, valueA)
	if err := store.Set(key, valueA); err != nil {
		log.Fatalf("Set(%s, A) failed: %v", key, err)
	}
	fmt.Printf("Step 2: Set(%s, %q) (overwriting)\n", key, valueB)
	if err := store.Set(key, valueB); err != nil {
		log.Fatalf("Set(%s, B) failed: %v", key, err)
	}

	value, found, err := store.Get(key)
	if err != nil {
		log.Fatalf("Get(%s) failed: %v", key, err)
	}
	fmt.Printf("Step 3: Get(%s) = %q, found=%v\n", key, value, found)

	if value != valueB {
		fmt.Printf("\nFAILED: expected %q, got %q\n", valueB, value)
		os.Exit(1)
	}
	if n := len(store.Scan()); n != 1 {
		fmt.Printf("WARNING: index has %d keys, expected 1\n", n)
	}
	fmt.Println("\nPASSED: the latest value was correctly returned")
}

func testIntegrity(dir string) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println("Test 3: Integrity Test (Read-Back)")
	fmt.Println(strings.Repeat("=", 60))

	store := openBenchStore(dir)
	defer store.Close()

	const totalKeys = 100000
	fmt.Printf("Step 1: Writing %d keys...\n", totalKeys)
	start := time.Now()
	for i := 0; i < totalKeys; i++ {
		key := fmt.Sprintf("key_%d", i)
		value := fmt.Sprintf("value_%d", i)
		if err := store.Set(key, value); err != nil {
			log.Fatalf("Set(%s) failed: %v", key, err)
		}
	}
	fmt.Printf("  Write completed in %v\n", time.Since(start))

	fmt.Println("\nStep 2: Randomly reading 1,000 keys to verify integrity...")
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	readStart := time.Now()
	errs := 0

	for i := 0; i < 1000; i++ {
		idx := rng.Intn(totalKeys)
		key := fmt.Sprintf("key_%d", idx)
		want := fmt.Sprintf("value_%d", idx)

		got, found, err := store.Get(key)
		if err != nil {
			errs++
			if errs <= 10 {
				fmt.Printf("  ERROR: Get(%s): %v\n", key, err)
			}
			continue
		}
		if !found || got != want {
			errs++
			if errs <= 10 {
				fmt.Printf("  ERROR: %s: expected %q, got %q (found=%v)\n", key, want, got, found)
			}
		}
	}

	fmt.Printf("\n  Read completed in %v (%.2f keys/sec)\n", time.Since(readStart), 1000.0/time.Since(readStart).Seconds())
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Errors: %d\n", errs)
	if errs > 0 {
		fmt.Printf("\nFAILED: %d errors occurred\n", errs)
		os.Exit(1)
	}
	fmt.Println("\nPASSED: all 1,000 random reads returned correct values")
}
