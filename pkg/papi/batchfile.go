package papi

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/papibridge/pkg/util"
)

// BatchFile is a batch described in YAML:
//
//	mode: dump
//	timeout: 30s
//	ignore_errors: false
//	commands:
//	  - api: sw_interface_dump
//	    args:
//	      sw_if_index: 4294967295
//	  - api: show_version
type BatchFile struct {
	Mode         Mode          `yaml:"mode"`
	Timeout      time.Duration `yaml:"timeout"`
	IgnoreErrors bool          `yaml:"ignore_errors"`
	Commands     []BatchEntry  `yaml:"commands"`
}

// BatchEntry is one command of a batch file.
type BatchEntry struct {
	API  string         `yaml:"api"`
	Args map[string]any `yaml:"args"`
}

// LoadBatchFile reads and validates a YAML batch file.
func LoadBatchFile(path string) (*BatchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file %s: %w", path, err)
	}
	bf, err := ParseBatchFile(data)
	if err != nil {
		return nil, fmt.Errorf("batch file %s: %w", path, err)
	}
	return bf, nil
}

// ParseBatchFile decodes and validates YAML batch data.
func ParseBatchFile(data []byte) (*BatchFile, error) {
	var bf BatchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if bf.Mode == "" {
		bf.Mode = ModeRequest
	}

	v := &util.ValidationBuilder{}
	if _, err := ParseMode(string(bf.Mode)); err != nil {
		v.AddErrorf("%v", err)
	}
	v.Add(bf.Timeout >= 0, "timeout must not be negative")
	v.Add(len(bf.Commands) > 0, "at least one command is required")
	for i, c := range bf.Commands {
		v.Add(c.API != "", fmt.Sprintf("commands[%d]: api is required", i))
	}
	if err := v.Build(); err != nil {
		return nil, err
	}
	return &bf, nil
}

// Batch returns the commands in file order.
func (bf *BatchFile) Batch() Batch {
	b := make(Batch, len(bf.Commands))
	for i, c := range bf.Commands {
		args := c.Args
		if args == nil {
			args = map[string]any{}
		}
		b[i] = Command{Name: c.API, Args: args}
	}
	return b
}

// Options returns the execution options the file asks for.
func (bf *BatchFile) Options() []Option {
	var opts []Option
	if bf.Timeout > 0 {
		opts = append(opts, WithTimeout(bf.Timeout))
	}
	if bf.IgnoreErrors {
		opts = append(opts, WithIgnoreErrors())
	}
	return opts
}

// Run queues the file's commands on e and executes them in the file's mode.
func (bf *BatchFile) Run(ctx context.Context, e *Executor) (*Response, error) {
	for _, c := range bf.Batch() {
		e.Add(c.Name, c.Args)
	}
	return e.Execute(ctx, bf.Mode, bf.Options()...)
}
