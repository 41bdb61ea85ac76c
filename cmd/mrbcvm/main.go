package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mrbc-go/mrbcvm/pkg/alloc"
	"github.com/mrbc-go/mrbcvm/pkg/builtin"
	"github.com/mrbc-go/mrbcvm/pkg/class"
	"github.com/mrbc-go/mrbcvm/pkg/hal"
	"github.com/mrbc-go/mrbcvm/pkg/rite"
	"github.com/mrbc-go/mrbcvm/pkg/sched"
	"github.com/mrbc-go/mrbcvm/pkg/symbol"
	"github.com/mrbc-go/mrbcvm/pkg/value"
	"github.com/mrbc-go/mrbcvm/pkg/vm"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mrbcvm",
		Short: "mruby/c-class register VM — load and run RITE 0300 bytecode",
	}

	var (
		poolSize   uint32
		priority   uint8
		tickMillis int
		timeslice  int
	)

	runCmd := &cobra.Command{
		Use:   "run <file.mrb> [file2.mrb ...]",
		Short: "Load one or more bytecode files and run them concurrently under the scheduler",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := alloc.NewPool(poolSize, alloc.DefaultConfig())
			symbols := symbol.New(pool, symbol.DefaultCapacity)
			registry := class.NewRegistry(symbols)
			classes := builtin.Init(registry, symbols)
			heap := value.NewHeap(pool)
			h := hal.NewStd(os.Stdout, os.Stderr)

			cfg := sched.DefaultConfig()
			cfg.TimesliceTickCount = timeslice
			s := sched.New(h, pool, heap, symbols, registry, classes, cfg)

			for _, path := range args {
				irep, err := loadFile(path, symbols)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				s.CreateTask(irep, priority)
			}

			stop := hal.TickSource(s, time.Duration(tickMillis)*time.Millisecond)
			defer stop()

			if err := s.Run(context.Background()); err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return nil
		},
	}
	runCmd.Flags().Uint32Var(&poolSize, "pool-size", 1<<20, "Allocator pool size in bytes")
	runCmd.Flags().Uint8Var(&priority, "priority", 128, "Task priority for every loaded file (1-255, lower runs first)")
	runCmd.Flags().IntVar(&tickMillis, "tick-ms", 10, "Tick source interval in milliseconds")
	runCmd.Flags().IntVar(&timeslice, "timeslice", sched.DefaultConfig().TimesliceTickCount, "Preemption-point credits granted per scheduling round")

	var disasmOut string
	disasmCmd := &cobra.Command{
		Use:   "disasm <file.mrb>",
		Short: "Decode a bytecode file's IREP tree and print it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols := symbol.New(alloc.NewPool(1<<16, alloc.DefaultConfig()), symbol.DefaultCapacity)
			irep, err := loadFile(args[0], symbols)
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}

			tree := vm.Disassemble(irep)
			buf, err := json.MarshalIndent(tree, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal disassembly: %w", err)
			}

			if disasmOut == "" {
				fmt.Println(string(buf))
				return nil
			}
			return os.WriteFile(disasmOut, buf, 0o644)
		},
	}
	disasmCmd.Flags().StringVar(&disasmOut, "output", "", "Write JSON to this file instead of stdout")

	var (
		benchPoolSize   uint32
		benchAllocSize  uint32
		benchCheckpoint string
	)
	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "Run the allocator stress scenario: alloc to exhaustion, free half, alloc larger (coalescing)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool := alloc.NewPool(benchPoolSize, alloc.DefaultConfig())

			fmt.Printf("Allocator stress: pool=%d bytes, alloc-size=%d bytes\n", benchPoolSize, benchAllocSize)

			var handles []alloc.Handle
			for {
				h, err := pool.Alloc(benchAllocSize)
				if err != nil {
					break
				}
				handles = append(handles, h)
				if len(handles)%64 == 0 {
					used, free := pool.Stats()
					fmt.Printf("  allocated %5d blocks  used=%8d free=%8d\n", len(handles), used, free)
				}
			}
			fmt.Printf("Exhausted after %d allocations\n", len(handles))

			freed := 0
			for i := 0; i < len(handles)/2; i++ {
				if err := pool.Free(handles[i]); err == nil {
					freed++
				}
			}
			fmt.Printf("Freed %d/%d blocks, attempting a %d-byte allocation (requires coalescing)\n",
				freed, len(handles), benchAllocSize*2)

			if _, err := pool.Alloc(benchAllocSize * 2); err != nil {
				return fmt.Errorf("coalesced allocation failed: %w", err)
			}
			fmt.Println("Coalesced allocation succeeded")

			if benchCheckpoint != "" {
				snap := sched.Snapshot{}
				if err := sched.SaveCheckpoint(benchCheckpoint, snap); err != nil {
					return fmt.Errorf("save checkpoint: %w", err)
				}
				fmt.Printf("Wrote checkpoint to %s\n", benchCheckpoint)
			}
			return nil
		},
	}
	benchCmd.Flags().Uint32Var(&benchPoolSize, "pool-size", 64*1024, "Allocator pool size in bytes")
	benchCmd.Flags().Uint32Var(&benchAllocSize, "alloc-size", 64, "Block size in bytes for the exhaustion pass")
	benchCmd.Flags().StringVar(&benchCheckpoint, "checkpoint", "", "Write a scheduler progress checkpoint to this path when done")

	rootCmd.AddCommand(runCmd, disasmCmd, benchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadFile(path string, symbols *symbol.Table) (*rite.IREP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return rite.Load(data, symbols)
}
