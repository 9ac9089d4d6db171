// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/luxfi/adbridge/pkg/ads"
	"github.com/luxfi/adbridge/pkg/log"
	"github.com/luxfi/adbridge/pkg/router"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ParseFilter reads repeated or comma separated type and id query values
func ParseFilter(typeValues, idValues []string) (router.Filter, error) {
	var f router.Filter
	for _, v := range splitValues(typeValues) {
		t, err := ads.ParseType(v)
		if err != nil {
			return router.Filter{}, err
		}
		f.Types = append(f.Types, t)
	}
	for _, v := range splitValues(idValues) {
		f.Identifiers = append(f.Identifiers, ads.Identifier(v))
	}
	return f, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// streamEvents upgrades to a websocket and writes every matching event as
// JSON until either side goes away
func (s *Server) streamEvents(c *gin.Context) {
	filter, err := ParseFilter(c.QueryArray("type"), c.QueryArray("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	sub, err := s.module.Subscribe(filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", log.Error(err))
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.Subscribers.Inc()
		defer s.metrics.Subscribers.Dec()
	}
	s.log.Debug("event stream connected", log.String("remote", c.Request.RemoteAddr), log.String("subscription", sub.ID))

	// The read side only watches for the client going away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for ev := range sub.Events() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			s.log.Debug("event stream write failed", log.Error(err))
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream closed"))
}
