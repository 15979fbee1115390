// Command justsh compiles a justfile into a standalone POSIX sh script.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/go-justsh/justsh/codegen"
	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/internal/config"
	"github.com/go-justsh/justsh/model"
	"github.com/go-justsh/justsh/parser"
)

// version is set at release time; "dev" during local builds.
var version = "dev"

func main() {
	var (
		infile     string
		outfile    string
		verbose    bool
		noColor    bool
		watch      bool
		configPath string
	)

	root := &cobra.Command{
		Use:   "justsh",
		Short: "Compile a justfile into a standalone POSIX sh script",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			applyDefaults(&infile, &outfile, &verbose, &noColor, cfg)

			if watch {
				return runWatch(infile, outfile, verbose, noColor)
			}
			return compileOnce(infile, outfile, verbose, noColor)
		},
	}

	root.Flags().StringVarP(&infile, "infile", "i", "./justfile", "Path to the justfile to compile")
	root.Flags().StringVarP(&outfile, "outfile", "o", "./just.sh", "Path to write the generated script")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print diagnostic information while compiling")
	root.Flags().BoolVar(&noColor, "no-color", false, "Disable colored diagnostic output")
	root.Flags().BoolVarP(&watch, "watch", "w", false, "Recompile automatically when the justfile changes")
	root.Flags().StringVar(&configPath, "config", ".justsh.yaml", "Path to a justsh configuration file")

	if err := root.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

func applyDefaults(infile, outfile *string, verbose, noColor *bool, cfg *config.File) {
	if cfg.Infile != "" && *infile == "./justfile" {
		*infile = cfg.Infile
	}
	if cfg.Outfile != "" && *outfile == "./just.sh" {
		*outfile = cfg.Outfile
	}
	if cfg.Verbose {
		*verbose = true
	}
	if cfg.NoColor {
		*noColor = true
	}
}

func compileOnce(infile, outfile string, verbose, noColor bool) error {
	src, err := os.ReadFile(infile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", infile, err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "compiling %s -> %s\n", infile, outfile)
	}

	script, err := compile(string(src), outfile)
	if err != nil {
		printError(err, noColor)
		return err
	}

	if err := os.WriteFile(outfile, []byte(script), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", outfile, err)
	}
	return nil
}

func compile(src, outfile string) (string, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return "", err
	}
	m, err := model.Build(prog)
	if err != nil {
		return "", err
	}
	return codegen.Generate(m, codegen.Options{
		Version: version,
		Source:  src,
		Outfile: filepath.Base(outfile),
	})
}

func runWatch(infile, outfile string, verbose, noColor bool) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(filepath.Dir(infile)); err != nil {
		return err
	}

	if err := compileOnce(infile, outfile, verbose, noColor); err != nil && verbose {
		fmt.Fprintf(os.Stderr, "initial compile failed: %v\n", err)
	}

	base := filepath.Base(infile)
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if err := compileOnce(infile, outfile, verbose, noColor); err != nil {
				fmt.Fprintf(os.Stderr, "recompile failed: %v\n", err)
				continue
			}
			if verbose {
				fmt.Fprintf(os.Stderr, "recompiled %s\n", infile)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "watch error: %v\n", err)
		}
	}
}

func printError(err error, noColor bool) {
	if ce, ok := err.(*errors.CompileError); ok {
		fmt.Fprintln(os.Stderr, ce.Error())
		return
	}
	fmt.Fprintln(os.Stderr, err)
}

// exitCodeFor maps compile-time failures to exit code 1 and all other
// errors (I/O, flag parsing) to exit code 2.
func exitCodeFor(err error) int {
	if _, ok := err.(*errors.CompileError); ok {
		return 1
	}
	return 2
}
