// Copyright (c) 2021-2026 Rustam Gilyazov and Contributors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package server

import (
	"encoding/json"
	"net/http"
)

type healthStatus struct {
	Status    string `json:"status"`
	Channel   string `json:"channel"`
	ChannelID string `json:"channel_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// healthcheck reports the channel resolution state.  It always responds
// with 200: the server keeps serving even if the channel is unresolved.
func (s *Server) healthcheck(w http.ResponseWriter, r *http.Request) {
	snap := s.res.Snapshot()
	hs := healthStatus{
		Status:    snap.Status.String(),
		Channel:   snap.Name,
		ChannelID: snap.ID,
	}
	if snap.Err != nil {
		hs.Error = snap.Err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(hs); err != nil {
		s.lg.WarnContext(r.Context(), "healthcheck", "error", err)
	}
}
