package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"chathub/domain"
	"chathub/repositories"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"/tmp/chathub"`
	// INSPECT_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatal("Config error: ", err)
	}

	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, room:, notif:, user:)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	header := fmt.Sprintf("Scanning %s with prefix %q", *dbPath, *prefix)
	if config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Println(header)

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			rawKey := string(item.Key())

			// The uid: collection is a secondary index, skip it
			if strings.HasPrefix(rawKey, "uid:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(mapRow(rawKey, v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// mapRow decodes the record behind a key according to its collection.
// Unknown or corrupt records still get a row so the scan never aborts.
func mapRow(key string, val []byte) []string {
	collection, _, _ := strings.Cut(key, ":")

	switch collection {
	case "msg":
		var m domain.Message
		if err := json.Unmarshal(val, &m); err == nil {
			detail := m.Body
			if m.Deleted {
				detail = "(deleted)"
			}
			return []string{key, strings.ToUpper(string(m.Kind)), m.CreatedAt.Format("15:04:05"), shortID(m.ID.String()), detail}
		}
	case "room":
		var r domain.Room
		if err := json.Unmarshal(val, &r); err == nil {
			detail := fmt.Sprintf("%s (%d members)", r.Name, len(r.Members))
			return []string{key, strings.ToUpper(string(r.Kind)), r.CreatedAt.Format("15:04:05"), shortID(string(r.ID)), detail}
		}
	case "notif":
		var n domain.Notification
		if err := json.Unmarshal(val, &n); err == nil {
			state := "UNREAD"
			if n.Read {
				state = "READ"
			}
			return []string{key, state, n.CreatedAt.Format("15:04:05"), shortID(n.ID.String()), n.Body}
		}
	case "user":
		var u repositories.User
		if err := json.Unmarshal(val, &u); err == nil {
			return []string{key, "USER", u.CreatedAt.Format("2006-01-02"), shortID(u.ID), u.DisplayName + " <" + u.Email + ">"}
		}
	}
	return []string{key, "RAW", "", "", fmt.Sprintf("%d bytes", len(val))}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
