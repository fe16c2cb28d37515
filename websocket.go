package ledmatrix

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
)

const (
	webSocketPrefix = "/ws/upload"

	webSocketReadBufferSize  = 4096
	webSocketWriteBufferSize = 1024

	// webSocketEnd is the text message completing an upload
	webSocketEnd = "end"
)

type webSocketReply struct {
	Status int    `json:"status"`
	Name   string `json:"name,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleWebSocket receives an upload to the path following the prefix as
// a series of binary messages. The query parameters type, filename and
// size play the part of the multipart headers.
func (m *Matrix) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	uri := strings.TrimPrefix(r.URL.Path, webSocketPrefix)
	q := r.URL.Query()

	contentType := q.Get("type")
	if contentType == "" {
		contentType = ContentTypeBitmap
	}

	size := int64(-1)
	if s := q.Get("size"); s != "" {
		var err error
		if size, err = strconv.ParseInt(s, 10, 64); err != nil {
			httpError(w, http.StatusBadRequest)
			return
		}
	}

	u, err := m.StartUpload(uri, q.Get("filename"), contentType, size)
	if err != nil {
		m.logger.Warn("Upload to %s refused: %v", uri, err)
		httpError(w, StatusCode(err))
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Warn("Upgrade websocket: %v", err)
		u.Abort()
		return
	}
	defer conn.Close()

	reply := func(err error) {
		msg := webSocketReply{Status: StatusCode(err), Name: u.Name()}
		if err != nil {
			msg.Error = err.Error()
		}
		if err := conn.WriteJSON(msg); err != nil {
			m.logger.Warn("Failed to reply to websocket: %v", err)
			return
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			m.logger.Debug("Websocket closed during upload: %v", err)
			u.Abort()
			return
		}

		switch mt {
		case websocket.BinaryMessage:
			if _, err := u.Write(data); err != nil {
				u.Abort()
				reply(err)
				return
			}
		case websocket.TextMessage:
			if string(data) != webSocketEnd {
				u.Abort()
				reply(ErrUnexpectedMessage)
				return
			}
			reply(u.Close())
			return
		}
	}
}
