package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/xtzs123/uniapp-backend/auth"
	"github.com/xtzs123/uniapp-backend/moderation"
	"github.com/xtzs123/uniapp-backend/projection"
	"github.com/xtzs123/uniapp-backend/repositories"
	"github.com/xtzs123/uniapp-backend/runtime"
	"github.com/xtzs123/uniapp-backend/services"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages, err := repositories.NewMessageRepository(db, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })
	groupRepo, err := repositories.NewGroupRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = groupRepo.Close() })

	projector := projection.NewProjector(repositories.NewConversationRepository(db), log)
	moderator, err := moderation.NewModerator(nil, '*', log)
	require.NoError(t, err)

	registry := runtime.NewRegistry(log)
	groups := services.NewGroupService(groupRepo, projector, log)
	chat := services.NewChatService(log, registry, messages, projector, groups, moderator)

	server := httptest.NewServer(NewHandler(log, registry, chat, []string{"*"}, 16))
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()
	token, err := auth.GenerateToken(userID, "tester", auth.KindUser, time.Hour)
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(payload, &frame))
	return frame
}

func Test_Connect_Sends_Welcome_And_Inbox(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	conn := dial(t, server, 1)

	welcome := readFrame(t, conn)
	req.Equal("system", welcome["type"])
	req.Equal("connected", welcome["message"])

	inbox := readFrame(t, conn)
	req.Equal("conversation_list", inbox["type"])
}

func Test_Connect_Refused_Without_User_Token(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=garbage", nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	adminToken, err := auth.GenerateToken(1, "ops", auth.KindAdmin, time.Hour)
	req.NoError(err)
	_, resp, err = websocket.DefaultDialer.Dial(url+"?token="+adminToken, nil)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func Test_Bare_Ping_Gets_Bare_Pong(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	conn := dial(t, server, 1)
	readFrame(t, conn) // system
	readFrame(t, conn) // conversation_list

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, payload, err := conn.ReadMessage()
	req.NoError(err)
	req.Equal("pong", string(payload))
}

func Test_Json_Ping_Gets_Pong_Frame(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	conn := dial(t, server, 1)
	readFrame(t, conn)
	readFrame(t, conn)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	pong := readFrame(t, conn)
	req.Equal("pong", pong["type"])
}

func Test_Bad_Frame_Keeps_Connection_Alive(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)
	conn := dial(t, server, 1)
	readFrame(t, conn)
	readFrame(t, conn)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"telepathy"}`)))
	errorFrame := readFrame(t, conn)
	req.Equal("error", errorFrame["type"])

	// Domain failures also come back as error frames, not closes.
	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"recall_message","messageId":999}`)))
	errorFrame = readFrame(t, conn)
	req.Equal("error", errorFrame["type"])

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	req.Equal("pong", readFrame(t, conn)["type"])
}

func Test_Second_Connection_Supersedes_First(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	first := dial(t, server, 1)
	readFrame(t, first)
	readFrame(t, first)

	second := dial(t, server, 1)
	readFrame(t, second)
	readFrame(t, second)

	// The first socket is closed by the server.
	req.NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := first.ReadMessage()
	req.Error(err)

	// The second stays live.
	req.NoError(second.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	req.Equal("pong", readFrame(t, second)["type"])
}

func Test_Message_Reaches_Online_Peer(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t)

	alice := dial(t, server, 1)
	readFrame(t, alice)
	readFrame(t, alice)
	bob := dial(t, server, 2)
	readFrame(t, bob)
	readFrame(t, bob)

	payload := `{"type":"send_message","conversationId":"conversation_1_2","content":"hello","messageType":"TEXT","targetUserId":2}`
	req.NoError(alice.WriteMessage(websocket.TextMessage, []byte(payload)))

	confirmation := readFrame(t, alice)
	req.Equal("message_sent", confirmation["type"])

	incoming := readFrame(t, bob)
	req.Equal("new_message", incoming["type"])
	req.Equal("hello", incoming["content"])
	req.Equal(float64(1), incoming["fromUserId"])
}
