package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	statDb "github.com/liars-games/liarsdice/internal/database/stat/database"
	"github.com/liars-games/liarsdice/internal/logging"
)

// HandleProfileStat serves aggregated lifetime stats for one player under
// /stats/{playerName}.
func HandleProfileStat(db *statDb.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context()).Named("server.HandleProfileStat")

		playerName := strings.TrimPrefix(r.URL.Path, "/stats/")
		if playerName == "" || strings.Contains(playerName, "/") {
			http.Error(w, "player name required", http.StatusBadRequest)
			return
		}

		stat, err := db.FetchProfileStat(playerName)
		if err != nil && !errors.Is(err, statDb.ErrNotFound) {
			logger.Errorf("fetch profile stat for %s: %v", playerName, err)
			http.Error(w, "failed to fetch stats", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stat); err != nil {
			logger.Errorf("encode profile stat: %v", err)
		}
	})
}
