// Command inspect dumps the chat keyspace of a Badger directory as a
// table, one row per stored entity. It opens the database read-only so
// it can run next to a stopped server without touching its data.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"

	"github.com/xtzs123/uniapp-backend/domain"
)

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	// msg: by default; conv:u:, grp: and gm: are the other families.
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("Missing -db flag")
	}

	db, err := openReadOnly(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Owner", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())

			// Index families store primary keys, not entities.
			if strings.HasPrefix(key, "msgc:") || strings.HasPrefix(key, "conv:c:") {
				continue
			}

			err := item.Value(func(val []byte) error {
				table.Append(describe(key, val))
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

// describe shapes one stored value into a display row based on its key
// family. Unknown families fall back to raw size.
func describe(key string, val []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if err := json.Unmarshal(val, &m); err != nil {
			break
		}
		detail := m.Content
		if m.IsRecalled {
			detail = "(recalled)"
		}
		if len(detail) > 40 {
			detail = detail[:40]
		}
		return []string{key, "MESSAGE", m.CreatedAt.Format("15:04:05"), fmt.Sprintf("%d", m.SenderID), detail}
	case strings.HasPrefix(key, "conv:u:"):
		var c domain.Conversation
		if err := json.Unmarshal(val, &c); err != nil {
			break
		}
		detail := fmt.Sprintf("%s unread=%d top=%t", c.ConversationID, c.UnreadCount, c.IsTop)
		return []string{key, string(c.Type), c.LastMessageTime.Format("15:04:05"), fmt.Sprintf("%d", c.UserID), detail}
	case strings.HasPrefix(key, "grp:"):
		var g domain.Group
		if err := json.Unmarshal(val, &g); err != nil {
			break
		}
		detail := fmt.Sprintf("%s members=%d", g.Name, g.MemberCount)
		return []string{key, "GROUP", g.CreatedAt.Format("15:04:05"), fmt.Sprintf("%d", g.CreatorID), detail}
	case strings.HasPrefix(key, "gm:"):
		var m domain.GroupMember
		if err := json.Unmarshal(val, &m); err != nil {
			break
		}
		return []string{key, "MEMBER", m.JoinedAt.Format("15:04:05"), fmt.Sprintf("%d", m.UserID), string(m.Role)}
	}
	return []string{key, "RAW", "--:--:--", "-", fmt.Sprintf("size=%d", len(val))}
}

func openReadOnly(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
