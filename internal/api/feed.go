package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-trainer/internal/session"
)

const (
	feedPingInterval = 15 * time.Second
	feedWriteTimeout = 5 * time.Second
)

// handleFeed streams a snapshot on connect and after every state change.
// A slow client only ever sees the latest snapshot.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	// Origin was already checked by the CORS middleware.
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("feed_accept_failed", zap.Error(err))
		return
	}
	defer c.Close(websocket.StatusInternalError, "feed closed")

	latest := make(chan session.Snapshot, 1)
	push := func(snap session.Snapshot) {
		for {
			select {
			case latest <- snap:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	}
	unsubscribe := sess.OnChange(push)
	defer unsubscribe()
	push(sess.Snapshot())

	ctx := c.CloseRead(r.Context())
	ping := time.NewTicker(feedPingInterval)
	defer ping.Stop()

	log := s.log.With(zap.String("session_id", sess.ID()))
	log.Debug("feed_connected")
	for {
		select {
		case <-ctx.Done():
			log.Debug("feed_disconnected")
			c.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-latest:
			if err := writeSnapshot(ctx, c, snap); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Debug("feed_write_failed", zap.Error(err))
				}
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
			err := c.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func writeSnapshot(ctx context.Context, c *websocket.Conn, snap session.Snapshot) error {
	wctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(wctx, c, snap)
}
