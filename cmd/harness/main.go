// Command harness drives a buffer pool and B+ tree index from a small
// line-oriented script, useful for exercising the storage engine by hand
// or from a shell test without writing Go.
//
// Commands, one per line on stdin:
//
//	insert <key> <value>
//	get <key>
//	remove <key>
//	scan [<from-key>]
//	stats
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"helindb/buffer"
	"helindb/internal/disk"
	"helindb/storage/index"
	"helindb/storage/page"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	dbFile := flag.String("db", "", "override the configured database file")
	poolSize := flag.Int("pool-size", 0, "override the configured buffer pool size")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("loading config")
	}
	if *dbFile != "" {
		cfg.DBFile = *dbFile
	}
	if *poolSize > 0 {
		cfg.PoolSize = *poolSize
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	dm, err := disk.Open(cfg.DBFile)
	if err != nil {
		logrus.WithError(err).Fatal("opening database file")
	}
	defer dm.Close()

	pool := buffer.NewPool(cfg.PoolSize, cfg.ReplacerK, dm)
	headerPID, hg, err := pool.NewPageGuarded()
	if err != nil {
		logrus.WithError(err).Fatal("allocating header page")
	}
	hg.Drop()

	tree, err := index.New[int64, int64](headerPID, pool, page.Int64Codec{}, page.Int64Codec{}, page.CompareInt64, cfg.LeafMax, cfg.InternalMax)
	if err != nil {
		logrus.WithError(err).Fatal("creating index")
	}

	logrus.WithFields(logrus.Fields{
		"db_file":      cfg.DBFile,
		"pool_size":    cfg.PoolSize,
		"leaf_max":     cfg.LeafMax,
		"internal_max": cfg.InternalMax,
	}).Info("harness ready")

	runScript(os.Stdin, tree, pool)
}

func runScript(in *os.File, tree *index.BTree[int64, int64], pool *buffer.Pool) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "insert":
			key, value, err := parseKV(fields)
			if err != nil {
				logrus.WithError(err).Error("insert")
				continue
			}
			if !tree.Insert(key, value) {
				fmt.Printf("insert %d: key already exists\n", key)
			}
		case "get":
			key, err := parseKey(fields)
			if err != nil {
				logrus.WithError(err).Error("get")
				continue
			}
			if v, ok := tree.GetValue(key); ok {
				fmt.Printf("%d -> %d\n", key, v)
			} else {
				fmt.Printf("%d not found\n", key)
			}
		case "remove":
			key, err := parseKey(fields)
			if err != nil {
				logrus.WithError(err).Error("remove")
				continue
			}
			tree.Remove(key)
		case "scan":
			it := tree.Begin()
			if len(fields) > 1 {
				from, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					logrus.WithError(err).Error("scan")
					continue
				}
				it = tree.BeginAt(from)
			}
			for !it.IsEnd() {
				fmt.Printf("%d -> %d\n", it.Key(), it.Value())
				it.Next()
			}
		case "stats":
			fmt.Printf("hits=%d misses=%d evictions=%d new_pages=%d\n",
				pool.Stats.Hits(), pool.Stats.Misses(), pool.Stats.Evictions(), pool.Stats.NewPages())
		default:
			logrus.WithField("command", fields[0]).Warn("unknown command")
		}
	}
}

func parseKey(fields []string) (int64, error) {
	if len(fields) != 2 {
		return 0, fmt.Errorf("expected 1 argument, got %d", len(fields)-1)
	}
	return strconv.ParseInt(fields[1], 10, 64)
}

func parseKV(fields []string) (int64, int64, error) {
	if len(fields) != 3 {
		return 0, 0, fmt.Errorf("expected 2 arguments, got %d", len(fields)-1)
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	value, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return key, value, nil
}
