// Package inspect serves a read-only HTML view over the chat keyspace
// plus live process stats, for poking at a running server during
// development. It is off unless a port is configured.
package inspect

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/xtzs123/uniapp-backend/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

type Row struct {
	Key       string
	Kind      string
	Timestamp string
	Owner     string
	Detail    string
}

// StatsProvider supplies the dashboard numbers, typically wired to the
// session registry.
type StatsProvider func() map[string]any

type pageData struct {
	Prefix string
	Items  []Row
	Stats  map[string]any
}

// Start serves /inspect on its own listener in the background.
func Start(db *badger.DB, port int, stats StatsProvider, log *slog.Logger) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "conv:u:"
		}

		data := pageData{Prefix: prefix, Stats: map[string]any{}}
		if stats != nil {
			data.Stats = stats()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				key := string(item.Key())
				if strings.HasPrefix(key, "msgc:") || strings.HasPrefix(key, "conv:c:") {
					continue
				}
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(key, val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	address := fmt.Sprintf("localhost:%d", port)
	log.Info("Inspect server listening", "address", address)
	go func() {
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Warn("Inspect server stopped", "error", err)
		}
	}()
}

func mapRow(key string, val []byte) Row {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var m domain.Message
		if json.Unmarshal(val, &m) == nil {
			detail := m.Content
			if m.IsRecalled {
				detail = "(recalled)"
			}
			return Row{key, "MESSAGE", m.CreatedAt.Format("15:04:05"), fmt.Sprintf("%d", m.SenderID), detail}
		}
	case strings.HasPrefix(key, "conv:u:"):
		var c domain.Conversation
		if json.Unmarshal(val, &c) == nil {
			detail := fmt.Sprintf("%s unread=%d top=%t", c.ConversationID, c.UnreadCount, c.IsTop)
			return Row{key, string(c.Type), c.LastMessageTime.Format("15:04:05"), fmt.Sprintf("%d", c.UserID), detail}
		}
	case strings.HasPrefix(key, "grp:"):
		var g domain.Group
		if json.Unmarshal(val, &g) == nil {
			detail := fmt.Sprintf("%s members=%d", g.Name, g.MemberCount)
			return Row{key, "GROUP", g.CreatedAt.Format("15:04:05"), fmt.Sprintf("%d", g.CreatorID), detail}
		}
	case strings.HasPrefix(key, "gm:"):
		var m domain.GroupMember
		if json.Unmarshal(val, &m) == nil {
			return Row{key, "MEMBER", m.JoinedAt.Format("15:04:05"), fmt.Sprintf("%d", m.UserID), string(m.Role)}
		}
	}
	return Row{key, "RAW", "--:--:--", "-", fmt.Sprintf("size=%d", len(val))}
}
