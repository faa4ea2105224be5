// Validate the decoder over the whole 16-bit opcode space: decode
// throughput, allocations and encode/decode round trips.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sarchlab/avrsim/insts"
)

// second is the word fed after the first word of two-word instructions.
const second = 0x1234

func main() {
	decoder := insts.NewDecoder()

	matched, roundTrips, sentinels := 0, 0, 0
	var mismatches []string

	for w := 0; w <= 0xFFFF; w++ {
		inst, _, err := decoder.DecodeWords([]uint16{uint16(w), second}, 0)
		if err != nil {
			continue
		}
		matched++

		if len(inst.Diagnostics()) > 0 {
			sentinels++
			continue
		}

		def, _ := insts.Lookup(inst.ID)
		values := make([]int64, len(inst.Operands))
		for i, o := range inst.Operands {
			values[i] = o.Int()
		}
		raw, err := insts.Encode(def, values)
		if err != nil || raw != inst.Raw {
			mismatches = append(mismatches,
				fmt.Sprintf("%#06x %s: encoded %#x, err %v", w, inst, raw, err))
			continue
		}
		roundTrips++
	}

	// Measure decode cost on a hot mix
	mix := []uint16{0xE102, 0x0C12, 0x9508, 0xF7E1, 0x900D}
	for i := 0; i < 1000; i++ {
		_, _ = decoder.Decode(mix[i%len(mix)], 0)
	}

	runtime.GC()
	var m1, m2 runtime.MemStats
	runtime.ReadMemStats(&m1)

	start := time.Now()
	iterations := 100000
	for i := 0; i < iterations; i++ {
		for _, w := range mix {
			_, _ = decoder.Decode(w, 0)
		}
	}
	elapsed := time.Since(start)
	runtime.ReadMemStats(&m2)

	total := iterations * len(mix)

	fmt.Printf("Decoder Validation Results:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Words matching an opcode: %d of 65536\n", matched)
	fmt.Printf("Encode round trips:       %d\n", roundTrips)
	fmt.Printf("Words with sentinels:     %d\n", sentinels)
	fmt.Printf("Round trip mismatches:    %d\n", len(mismatches))
	fmt.Printf("Decodes per second:       %.0f\n", float64(total)/elapsed.Seconds())
	fmt.Printf("Allocations per decode:   %.2f\n", float64(m2.Mallocs-m1.Mallocs)/float64(total))
	fmt.Printf("Bytes per decode:         %.1f\n", float64(m2.TotalAlloc-m1.TotalAlloc)/float64(total))

	for _, m := range mismatches {
		fmt.Println("  " + m)
	}
	if len(mismatches) > 0 {
		os.Exit(1)
	}
}
