package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"roguelite.ai/internal/persistence/region"
	"roguelite.ai/internal/persistence/snapshot"
	"roguelite.ai/internal/sim/catalogs"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmds := map[string]func([]string){
		"state":    stateCmd,
		"snapshot": snapshotCmd,
		"time":     timeCmd,
		"put":      putCmd,
		"chunk":    chunkCmd,
		"resets":   resetsCmd,
		"inspect":  inspectCmd,
		"region":   regionCmd,
	}
	fn, ok := cmds[os.Args[1]]
	if !ok {
		usage()
		os.Exit(2)
	}
	fn(os.Args[2:])
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

online (loopback admin API):
  state      print server state
  snapshot   write a snapshot now
  time       set the day time (-set ticks | -morning day)
  put        add items to a container or storage vehicle
  chunk      dump a resident chunk
  resets     list recent reset cycles

offline:
  inspect    summarize a snapshot file (default: latest)
  region     read one chunk from the region store`)
}

type levelSummary struct {
	ID         string `json:"id"`
	Chunks     int    `json:"chunks"`
	Containers int    `json:"containers"`
	Entities   int    `json:"entities"`
	Items      int    `json:"item_entities"`
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	path := fs.String("snapshot", "", "snapshot path (default: latest under <data>/snapshots)")
	headerOnly := fs.Bool("header", false, "print only the header line")
	_ = fs.Parse(args)

	p := *path
	if p == "" {
		latest, err := snapshot.Latest(filepath.Join(*dataDir, "snapshots"))
		if err != nil {
			fail("find latest", err)
		}
		if latest == "" {
			fail("find latest", fmt.Errorf("no snapshots under %s", *dataDir))
		}
		p = latest
	}
	if *headerOnly {
		h, err := snapshot.ReadHeader(p)
		if err != nil {
			fail("read header", err)
		}
		printJSON(h)
		return
	}

	snap, err := snapshot.ReadSnapshot(p)
	if err != nil {
		fail("read snapshot", err)
	}
	out := struct {
		Path    string          `json:"path"`
		Header  snapshot.Header `json:"header"`
		DayTime int64           `json:"day_time"`
		Players int             `json:"players"`
		Levels  []levelSummary  `json:"levels"`
	}{Path: p, Header: snap.Header, DayTime: snap.DayTime, Players: len(snap.Players)}
	for _, lv := range snap.Levels {
		s := levelSummary{ID: lv.ID, Chunks: len(lv.Chunks), Entities: len(lv.Entities)}
		for _, c := range lv.Chunks {
			s.Containers += len(c.Containers)
		}
		for _, e := range lv.Entities {
			if e.Item != "" {
				s.Items++
			}
		}
		out.Levels = append(out.Levels, s)
	}
	printJSON(out)
}

func regionCmd(args []string) {
	fs := flag.NewFlagSet("region", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	configDir := fs.String("configs", "./configs", "config directory (block palette)")
	level := fs.String("level", "overworld", "dimension id")
	cx := fs.Int("cx", 0, "chunk x")
	cz := fs.Int("cz", 0, "chunk z")
	_ = fs.Parse(args)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fail("load catalogs", err)
	}
	store, err := region.New(filepath.Join(*dataDir, "levels"), cats.Blocks.Palette)
	if err != nil {
		fail("open region store", err)
	}
	defer store.Close()

	c, ok, err := store.LoadChunk(*level, *cx, *cz)
	if err != nil {
		fail("load chunk", err)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "chunk %d,%d of %s not saved (%s)\n", *cx, *cz, *level, region.FileName(*cx, *cz))
		os.Exit(1)
	}
	counts := map[string]int{}
	for _, sec := range c.Sections {
		for _, id := range sec.Blocks {
			counts[cats.BlockName(id)]++
		}
	}
	printJSON(map[string]any{
		"level":      *level,
		"cx":         c.CX,
		"cz":         c.CZ,
		"sections":   len(c.Sections),
		"blocks":     counts,
		"containers": c.Containers,
	})
}

func parseVec3(s string) ([3]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return [3]int{}, fmt.Errorf("want x,y,z")
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return [3]int{}, err
		}
		v[i] = n
	}
	return v, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
