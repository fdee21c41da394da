// Command jobhunt-board runs the terminal kanban client against a board
// API instance.
package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/kaitranntt/jobhunt-sub002/kanban"
	"github.com/kaitranntt/jobhunt-sub002/tui"
)

func main() {
	_ = godotenv.Load()

	baseURL := os.Getenv("API_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("API_TOKEN")
	if token == "" {
		log.Fatal("API_TOKEN must be set; mint one with gen-token")
	}

	logger := log.New()
	logger.SetOutput(os.Stderr)

	client := tui.NewClient(baseURL, token)

	// The board notifies on asynchronous rollbacks; forward those to the
	// program so the screen repaints.
	var program *tea.Program
	board := kanban.NewBoard(client.UpdateStatus,
		kanban.WithLogger(logger),
		kanban.WithOnChange(func() {
			if program != nil {
				program.Send(tui.RefreshMsg{})
			}
		}),
	)

	program = tea.NewProgram(tui.NewModel(board, client), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Fatalf("board client failed: %v", err)
	}
}
