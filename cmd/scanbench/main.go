// Command scanbench measures host scan throughput across tile sizes and can
// export the measured-best tiles as a tuning file for reuse via
// algoscan.ImportTuning.
package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	algoscan "github.com/cwbudde/algo-scan"
	"github.com/cwbudde/algo-scan/internal/cpu"
)

func main() {
	var (
		sizeList   = flag.String("sizes", "1024,65536,1048576", "comma-separated scan lengths")
		tileList   = flag.String("tiles", "256,1024,4096", "comma-separated tile sizes to sweep")
		iters      = flag.Int("iters", 50, "benchmark iterations")
		warmup     = flag.Int("warmup", 5, "warmup iterations")
		workers    = flag.Int("workers", 0, "worker goroutines (0 = NumCPU)")
		opName     = flag.String("op", "sum", "operator: sum, mul, min, max")
		exclusive  = flag.Bool("exclusive", false, "benchmark exclusive instead of inclusive scan")
		seed       = flag.Int64("seed", 1, "rng seed")
		tuningFile = flag.String("tuning", "", "export measured-best tiles to file (portable format)")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	sizes := parseInts(*sizeList)
	tiles := parseInts(*tileList)
	if len(sizes) == 0 || len(tiles) == 0 {
		log.Fatal().Msg("no sizes or tiles specified")
	}
	op, ok := operators[*opName]
	if !ok {
		log.Fatal().Str("op", *opName).Msg("unknown operator")
	}

	log.Info().
		Str("cpu", cpu.DetectFeatures().String()).
		Int("iters", *iters).
		Int("warmup", *warmup).
		Str("op", *opName).
		Msg("scanbench starting")

	rnd := rand.New(rand.NewSource(*seed))
	tuning := algoscan.NewTuning()

	for _, n := range sizes {
		src := make([]float64, n)
		for i := range src {
			src[i] = rnd.Float64() + 0.5
		}
		dst := make([]float64, n)

		bestTile, bestNs := 0, math.MaxFloat64
		for _, tile := range tiles {
			nsOp, err := benchOnce(src, dst, op, tile, *workers, *iters, *warmup, *exclusive)
			if err != nil {
				log.Fatal().Err(err).Int("size", n).Int("tile", tile).Msg("benchmark failed")
			}
			log.Info().
				Int("size", n).
				Int("tile", tile).
				Float64("ns_op", nsOp).
				Float64("gb_s", gbPerSec(n, nsOp)).
				Msg("measured")
			if nsOp < bestNs {
				bestNs, bestTile = nsOp, tile
			}
		}
		if err := tuning.Record(n, bestTile); err != nil {
			log.Fatal().Err(err).Msg("failed to record tuning entry")
		}
		log.Info().Int("size", n).Int("best_tile", bestTile).Float64("ns_op", bestNs).Msg("best")
	}

	if *tuningFile != "" {
		if err := algoscan.ExportTuning(*tuningFile, tuning); err != nil {
			log.Fatal().Err(err).Msg("failed to export tuning")
		}
		log.Info().Str("file", *tuningFile).Int("entries", tuning.Len()).Msg("tuning exported")
	}
}

var operators = map[string]algoscan.BinaryOp[float64]{
	"sum": func(a, b float64) float64 { return a + b },
	"mul": func(a, b float64) float64 { return a * b },
	"min": math.Min,
	"max": math.Max,
}

func benchOnce(src, dst []float64, op algoscan.BinaryOp[float64], tile, workers, iters, warmup int, exclusive bool) (float64, error) {
	dev, err := algoscan.NewDevice(algoscan.DeviceOptions{Workers: workers, Tile: tile})
	if err != nil {
		return 0, err
	}
	defer dev.Close()

	stream, err := dev.NewStream()
	if err != nil {
		return 0, err
	}
	need, err := dev.ScratchLen(len(src))
	if err != nil {
		return 0, err
	}
	scratch := make([]float64, need)

	run := func() error {
		if exclusive {
			if err := algoscan.ExclusiveScan(stream, dst, src, op, scratch); err != nil {
				return err
			}
		} else {
			if err := algoscan.InclusiveScan(stream, dst, src, op, scratch); err != nil {
				return err
			}
		}
		return stream.Synchronize()
	}

	if err := run(); err != nil {
		return 0, err
	}
	if err := verify(src, dst, op, exclusive); err != nil {
		return 0, err
	}
	for i := 0; i < warmup; i++ {
		if err := run(); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	for i := 0; i < iters; i++ {
		if err := run(); err != nil {
			return 0, err
		}
	}
	return float64(time.Since(start).Nanoseconds()) / float64(iters), nil
}

// verify compares one scan result against the sequential fold before the
// timed iterations, so misconfigured runs fail loudly instead of producing
// numbers for garbage.
func verify(src, dst []float64, op algoscan.BinaryOp[float64], exclusive bool) error {
	var acc float64
	have := false
	for i := range src {
		want := acc
		if !exclusive {
			if have {
				want = op(acc, src[i])
			} else {
				want = src[i]
			}
		} else if !have {
			want = 0
		}
		if relDiff(dst[i], want) > 1e-9 {
			return fmt.Errorf("verification failed at %d: got %v, want %v", i, dst[i], want)
		}
		if have {
			acc = op(acc, src[i])
		} else {
			acc, have = src[i], true
		}
	}
	return nil
}

func relDiff(a, b float64) float64 {
	d := math.Abs(a - b)
	if m := math.Max(math.Abs(a), math.Abs(b)); m > 1 {
		return d / m
	}
	return d
}

// gbPerSec reports effective bandwidth: one read plus one write of n float64s.
func gbPerSec(n int, nsOp float64) float64 {
	bytes := float64(n) * 8 * 2
	return bytes / nsOp
}

func parseInts(list string) []int {
	var out []int
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
