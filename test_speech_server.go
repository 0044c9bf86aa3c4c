package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Standalone development server that mimics the production speech endpoint.
// Run it next to the client to exercise the full pipeline without a backend:
//
//	go run test_speech_server.go
//	SPEECH_ENDPOINT=http://localhost:3200/upload ./capture-client

type MouthCue struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Value string  `json:"value"`
}

type VisemeData struct {
	MouthCues []MouthCue `json:"mouthCues"`
}

type SpeechResponse struct {
	Transcript string     `json:"transcript"`
	VisemeData VisemeData `json:"viseme_data"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

var visemeValues = []string{"A", "B", "C", "D", "E", "F", "G", "H", "X"}

func uploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided", err.Error())
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file provided", "expected multipart field 'audio'")
		return
	}
	defer file.Close()

	audioData, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Audio processing failed", err.Error())
		return
	}

	if len(audioData) == 0 {
		writeError(w, http.StatusBadRequest, "No audio file provided", "uploaded file is empty")
		return
	}

	log.Printf("Received upload: filename=%s size=%d bytes content-type=%s",
		header.Filename, len(audioData), header.Header.Get("Content-Type"))

	// Estimate duration from canonical WAV size (16kHz mono 16-bit)
	duration := float64(len(audioData)-44) / float64(16000*2)
	if duration < 0.2 {
		duration = 0.2
	}

	response := SpeechResponse{
		Transcript: fmt.Sprintf("Test transcript for a %.1f second recording.", duration),
		VisemeData: VisemeData{MouthCues: generateMouthCues(duration)},
	}

	// Simulate backend processing latency
	time.Sleep(100 * time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)

	log.Printf("Responded with %d mouth cues for %.1fs of audio",
		len(response.VisemeData.MouthCues), duration)
}

// generateMouthCues fabricates a lip-sync timeline at roughly 5 cues per second,
// capped at 30 cues, ending on the rest shape.
func generateMouthCues(duration float64) []MouthCue {
	count := int(duration * 5)
	if count < 1 {
		count = 1
	}
	if count > 30 {
		count = 30
	}

	step := duration / float64(count)
	cues := make([]MouthCue, 0, count+1)

	for i := 0; i < count; i++ {
		cues = append(cues, MouthCue{
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Value: visemeValues[i%(len(visemeValues)-1)],
		})
	}

	// Close the mouth at the end
	cues = append(cues, MouthCue{
		Start: duration,
		End:   duration + 0.1,
		Value: "X",
	})

	return cues
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message, Details: details})
	log.Printf("Rejected upload (%d): %s - %s", status, message, details)
}

func main() {
	http.HandleFunc("/upload", uploadHandler)

	addr := ":3200"
	log.Printf("Test speech server listening on %s", addr)
	log.Printf("Upload endpoint: http://localhost%s/upload", addr)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
