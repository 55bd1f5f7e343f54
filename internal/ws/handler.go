package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/session"
	"github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const EvtSnapshot = "snapshot"

type Source interface {
	Subscribe(id string, outbox chan session.View)
	Unsubscribe(id string)
}

// Handler streams a snapshot frame to the connected renderer after every
// session mutation. The stream is one way; inbound frames are ignored.
func Handler(src Source, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// The inspector listens on loopback unless configured otherwise;
			// renderers may be served from any origin.
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Debug("stream accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan session.View, 8)
		clientID := uuid.NewString()
		src.Subscribe(clientID, out)
		defer src.Unsubscribe(clientID)
		log.Debug("stream opened", zap.String("client", clientID))

		// CloseRead discards inbound frames and cancels ctx once the peer goes away
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-out:
				if !ok {
					log.Info("stream dropped", zap.String("client", clientID))
					conn.Close(websocket.StatusTryAgainLater, "too slow")
					return
				}
				data, err := json.Marshal(v.Snapshot())
				if err != nil {
					log.Warn("encode snapshot", zap.Error(err))
					continue
				}
				payload, _ := json.Marshal(types.ServerMessage{Event: EvtSnapshot, Data: data})
				wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				err = conn.Write(wctx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}
