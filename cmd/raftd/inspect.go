package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/KilimcininKorOglu/raftd/internal/raft"
	"github.com/KilimcininKorOglu/raftd/internal/storage"
)

// inspectCorruptExit is the exit code for a log with a bad entry.
const inspectCorruptExit = 2

// inspectSummary describes a scanned log file.
type inspectSummary struct {
	Entries  int
	Pages    int64
	LastTerm uint64
	Err      error // First corrupt or incomplete entry, if any
	ErrPage  int64 // Page where Err was found
}

// inspectCmd handles the inspect command.
func inspectCmd(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	logFile := fs.String("log", "", "Path to the log file")
	commands := fs.Bool("commands", false, "Decode key-value commands")
	quiet := fs.Bool("quiet", false, "Print only the summary")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		printInspectUsage(os.Stdout)
		return 0
	}

	if *logFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -log is required")
		return 1
	}

	f, err := os.Open(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return 1
	}
	defer f.Close()

	var out io.Writer = os.Stdout
	if *quiet {
		out = io.Discard
	}

	summary, err := scanLog(f, func(e *raft.LogEntry, page int64, pages int) {
		printEntry(out, e, page, pages, *commands)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading log file: %v\n", err)
		return 1
	}

	fmt.Printf("\n%d entries in %d pages, last term %d\n", summary.Entries, summary.Pages, summary.LastTerm)
	if summary.Err != nil {
		fmt.Printf("Log is damaged at page %d: %v\n", summary.ErrPage, summary.Err)
		return inspectCorruptExit
	}
	return 0
}

// scanLog decodes entries from r until a zero page, the end of the data or
// the first bad entry, applying the same checks as log recovery. Bad entries
// end the scan and are reported in the summary; other read failures are
// returned.
func scanLog(r io.Reader, visit func(e *raft.LogEntry, page int64, pages int)) (*inspectSummary, error) {
	br := bufio.NewReaderSize(r, 64*storage.PageSize)
	summary := &inspectSummary{}

	for {
		head, err := br.Peek(storage.PageSize)
		if len(head) == 0 && errors.Is(err, io.EOF) {
			return summary, nil
		}
		if len(head) < storage.PageSize {
			if errors.Is(err, io.EOF) {
				summary.Err = fmt.Errorf("%w: torn trailing page of %d bytes", raft.ErrIncompleteRead, len(head))
				summary.ErrPage = summary.Pages
				return summary, nil
			}
			return summary, err
		}
		var first storage.Page
		copy(first[:], head)
		if first.IsZero() {
			return summary, nil
		}

		entry, pages, err := raft.ReadEntry(br)
		if err != nil {
			if errors.Is(err, raft.ErrCorruptEntry) || errors.Is(err, raft.ErrIncompleteRead) || errors.Is(err, io.EOF) {
				if errors.Is(err, io.EOF) {
					err = fmt.Errorf("%w: %v", raft.ErrIncompleteRead, err)
				}
				summary.Err = err
				summary.ErrPage = summary.Pages
				return summary, nil
			}
			return summary, err
		}

		if err := raft.CheckSuccessor(uint64(summary.Entries), summary.LastTerm, entry); err != nil {
			summary.Err = err
			summary.ErrPage = summary.Pages
			return summary, nil
		}

		visit(entry, summary.Pages, pages)
		summary.Entries++
		summary.Pages += int64(pages)
		summary.LastTerm = entry.Term
	}
}

func printEntry(w io.Writer, e *raft.LogEntry, page int64, pages int, decode bool) {
	fmt.Fprintf(w, "index=%d term=%d client=%d page=%d pages=%d bytes=%d", e.Index, e.Term, e.ClientID, page, pages, len(e.Command))
	if decode {
		switch {
		case len(e.Command) == 0:
			fmt.Fprint(w, " noop")
		default:
			cmd, err := raft.DecodeKVCommand(e.Command)
			if err != nil {
				fmt.Fprintf(w, " command=<%v>", err)
			} else {
				fmt.Fprintf(w, " %s", describeCommand(cmd))
			}
		}
	}
	fmt.Fprintln(w)
}

func describeCommand(cmd *raft.KVCommand) string {
	switch cmd.Op {
	case raft.KVPut:
		return fmt.Sprintf("put seq=%d key=%q value=%d bytes", cmd.Seq, cmd.Key, len(cmd.Value))
	case raft.KVDelete:
		return fmt.Sprintf("delete seq=%d key=%q", cmd.Seq, cmd.Key)
	default:
		return fmt.Sprintf("op=%d", cmd.Op)
	}
}
