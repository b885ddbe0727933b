package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"

	"github.com/colorfulnotion/opfind/kb"
	"github.com/colorfulnotion/opfind/log"
	"github.com/colorfulnotion/opfind/oracle"
	"github.com/colorfulnotion/opfind/sensitivity"
	"github.com/colorfulnotion/opfind/types"
)

func newConsoleCmd(opts *options) *cobra.Command {
	var kbPath string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Interactive JavaScript console bound to the decoder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, closeOracle, err := opts.openOracle("")
			if err != nil {
				return err
			}
			defer closeOracle()
			k := kb.New("")
			if kbPath != "" {
				if k, err = kb.Load(kbPath); err != nil {
					return err
				}
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "opfind> ",
				HistoryFile: filepath.Join(os.TempDir(), "opfind_console_history.txt"),
				Stdout:      cmd.OutOrStdout(),
			})
			if err != nil {
				return fmt.Errorf("starting readline: %w", err)
			}
			defer rl.Close()
			return runConsole(newConsoleVM(backend, k, cmd.OutOrStdout()), rl, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&kbPath, "kb", "", "Knowledge base exposed as facts()")
	return cmd
}

type lineReader interface {
	Readline() (string, error)
}

func runConsole(vm *goja.Runtime, rl lineReader, out io.Writer) error {
	fmt.Fprintln(out, "Console started. Try decode(0x1000), analyze(word), facts(). Type 'exit' to quit.")
	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit":
			return nil
		}
		v, err := vm.RunString(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if v != nil && !goja.IsUndefined(v) {
			fmt.Fprintln(out, render(v))
		}
	}
}

// render prints objects and arrays as JSON and anything else as JS would.
func render(v goja.Value) string {
	switch x := v.Export().(type) {
	case string:
		return x
	case map[string]interface{}, []interface{}, []string:
		if b, err := json.Marshal(x); err == nil {
			return string(b)
		}
	}
	return v.String()
}

// newConsoleVM binds decode, analyze, facts and print. Words are plain JS
// numbers; results are JSON-like objects with hex strings for masks.
func newConsoleVM(o oracle.Oracle, k *kb.KnowledgeBase, out io.Writer) *goja.Runtime {
	vm := goja.New()
	analyzer := sensitivity.New(o, k)

	mustSet := func(name string, v interface{}) {
		if err := vm.Set(name, v); err != nil {
			log.Error(log.Console, "binding", "name", name, "err", err)
		}
	}
	throw := func(err error) {
		panic(vm.NewGoError(err))
	}

	mustSet("decode", func(word uint32) map[string]interface{} {
		res, err := o.Decode(word)
		if err != nil {
			throw(err)
		}
		return decodeObject(word, res)
	})
	mustSet("analyze", func(word uint32) map[string]interface{} {
		res, err := o.Decode(word)
		if err != nil {
			throw(err)
		}
		var r sensitivity.Result
		if res.IsWide() {
			r, err = analyzer.Analyze(word, res)
		} else {
			r, err = analyzer.SkipRegion(word, res)
		}
		if err != nil {
			throw(err)
		}
		seeds := make([]string, len(r.Seeds))
		for i, s := range r.Seeds {
			seeds[i] = types.FormatWord(s)
		}
		return map[string]interface{}{
			"word":     types.FormatWord(word),
			"decoded":  res.String(),
			"mask":     types.FormatWord(r.Mask),
			"opcode":   types.FormatWord(r.Opcode),
			"illegal":  types.FormatWord(r.Illegal),
			"dontCare": types.FormatWord(r.DontCare),
			"seeds":    seeds,
		}
	})
	mustSet("facts", func() []string {
		facts := k.Facts()
		lines := make([]string, len(facts))
		for i, f := range facts {
			lines[i] = f.String()
		}
		return lines
	})
	mustSet("print", func(args ...goja.Value) {
		for _, a := range args {
			fmt.Fprintln(out, a.String())
		}
	})
	return vm
}

func decodeObject(word uint32, res types.DecodeResult) map[string]interface{} {
	obj := map[string]interface{}{
		"word": types.FormatWord(word),
		"kind": res.Kind.String(),
		"text": res.String(),
	}
	if res.Kind == types.Decoded {
		obj["mnemonic"] = res.Mnemonic
		obj["shape"] = string(res.Shape)
		obj["operands"] = res.Operands
		obj["size"] = res.Size
	}
	return obj
}
