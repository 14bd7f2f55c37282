package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/KilimcininKorOglu/raftd/internal/raft"
	"github.com/KilimcininKorOglu/raftd/internal/storage"
)

// Set at build time: go build -ldflags "-X main.version=0.3.0 -X main.commit=abc123"
var (
	version   = "0.3.0"
	commit    = "unknown"
	buildDate = "unknown"
)

// wireKinds lists the frame kinds this build speaks.
var wireKinds = []raft.MessageKind{
	raft.KindRequestVote,
	raft.KindAppendEntries,
	raft.KindRequestVoteReply,
	raft.KindAppendEntriesReply,
}

func versionCmd(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	short := fs.Bool("short", false, "Show only version number")
	format := fs.Bool("format", false, "Show only log and wire format")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	switch {
	case *help || *helpLong:
		printVersionUsage(os.Stdout)
	case *short:
		fmt.Println(version)
	case *format:
		printFormat(os.Stdout)
	default:
		printVersion(os.Stdout)
	}
	return 0
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "raftd version %s (%s, built %s)\n", version, commit, buildDate)
	fmt.Fprintf(w, "  Go:   %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	printFormat(w)
}

// printFormat describes the on-disk page layout and the RPC frame kinds.
func printFormat(w io.Writer) {
	fmt.Fprintf(w, "  Log:  %d-byte pages, %d payload bytes on a start page, %d on overflow\n",
		storage.PageSize, storage.FirstPagePayload, storage.OverflowPagePayload)
	fmt.Fprint(w, "  Wire:")
	for _, k := range wireKinds {
		fmt.Fprintf(w, " %d=%s", uint8(k), k)
	}
	fmt.Fprintln(w)
}
