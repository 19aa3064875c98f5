package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

const (
	baseURL = "http://localhost:3000/api"
)

// Pretty print JSON helper
func prettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", v)
		return
	}
	fmt.Println(string(b))
}

// Request helper
func sendRequest(method, url string, body interface{}) (*http.Response, []byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequest(method, baseURL+url, bodyReader)
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{} // No timeout, research runs can be slow
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	return resp, respBody, err
}

func dataField(body []byte) map[string]interface{} {
	var envelope map[string]interface{}
	json.Unmarshal(body, &envelope)
	if data, ok := envelope["data"].(map[string]interface{}); ok {
		return data
	}
	return nil
}

func main() {
	color.Cyan("🚀 Starting DeepSearch API Test\n")

	// 1. Start a research run
	color.Yellow("\n[RESEARCH] 1. Start Research")
	resp, body, err := sendRequest("POST", "/research/v1", map[string]interface{}{
		"query": "What are the latest advances in battery recycling?",
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)

	var researchID string
	if data := dataField(body); data != nil {
		if id, ok := data["id"].(string); ok {
			researchID = id
			fmt.Printf("Research Session ID: %s\n", researchID)
		}
	}
	if researchID == "" {
		color.Red("No session ID returned, aborting")
		os.Exit(1)
	}

	// 2. Poll until the pipeline settles
	color.Yellow("\n[RESEARCH] 2. Poll Until Terminal")
	var runState string
	for i := 0; i < 60; i++ {
		time.Sleep(2 * time.Second)
		_, body, err = sendRequest("GET", "/research/v1/"+researchID, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		data := dataField(body)
		if data == nil {
			continue
		}
		runState, _ = data["run_state"].(string)
		if steps, ok := data["steps"].([]interface{}); ok {
			fmt.Printf("run_state=%s steps=", runState)
			for _, s := range steps {
				if step, ok := s.(map[string]interface{}); ok {
					fmt.Printf("%v:%v ", step["type"], step["status"])
				}
			}
			fmt.Println()
		}
		if runState == "completed" || runState == "stopped" {
			break
		}
	}
	if runState != "completed" {
		color.Red("Research did not complete in time (run_state=%s)", runState)
	}

	// 3. Fetch the plain text report
	color.Yellow("\n[RESEARCH] 3. Fetch Report")
	resp, body, err = sendRequest("GET", "/research/v1/"+researchID+"/report", nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		report := string(body)
		if len(report) > 1200 {
			report = report[:1200] + "\n... (truncated)"
		}
		fmt.Println(report)
	}

	// 4. Search the archive for related past runs
	color.Yellow("\n[RESEARCH] 4. Search Archive")
	resp, body, err = sendRequest("GET", "/research/v1/archive/search?q=battery+recycling&limit=3", nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var archiveResp map[string]interface{}
		json.Unmarshal(body, &archiveResp)
		prettyPrint(archiveResp)
	}

	// Same endpoint with a slash filter, matches literally by run state.
	color.Yellow("\n[RESEARCH] 4b. Search Archive (state filter)")
	resp, body, err = sendRequest("GET", "/research/v1/archive/search?q=%2Fstate%3Acompleted&limit=3", nil)
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var filteredResp map[string]interface{}
		json.Unmarshal(body, &filteredResp)
		prettyPrint(filteredResp)
	}

	// 5. List council backends
	color.Yellow("\n[COUNCIL] 5. List Backends")
	resp, body, err = sendRequest("GET", "/council/v1/backends", nil)
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)

	var backendIDs []string
	var backendsResp map[string]interface{}
	json.Unmarshal(body, &backendsResp)
	if list, ok := backendsResp["data"].([]interface{}); ok {
		for _, item := range list {
			if b, ok := item.(map[string]interface{}); ok {
				if id, ok := b["id"].(string); ok {
					backendIDs = append(backendIDs, id)
				}
			}
		}
	}
	prettyPrint(backendsResp)

	if len(backendIDs) < 2 {
		color.Red("Need at least two configured backends for the council test, skipping")
		color.Cyan("\n✅ Test Sequence Complete")
		return
	}

	// 6. Start a council run with the first two backends
	color.Yellow("\n[COUNCIL] 6. Start Council")
	resp, body, err = sendRequest("POST", "/council/v1", map[string]interface{}{
		"query":       "Is nuclear power essential for decarbonization?",
		"backend_ids": backendIDs[:2],
	})
	if err != nil {
		color.Red("Failed: %v", err)
		os.Exit(1)
	}
	color.Green("Status: %s", resp.Status)

	var councilID string
	if data := dataField(body); data != nil {
		if id, ok := data["id"].(string); ok {
			councilID = id
			fmt.Printf("Council Session ID: %s\n", councilID)
		}
	}
	if councilID == "" {
		color.Red("No council ID returned, aborting")
		os.Exit(1)
	}

	// 7. Poll until the council settles
	color.Yellow("\n[COUNCIL] 7. Poll Until Terminal")
	for i := 0; i < 60; i++ {
		time.Sleep(2 * time.Second)
		_, body, err = sendRequest("GET", "/council/v1/"+councilID, nil)
		if err != nil {
			color.Red("Failed: %v", err)
			os.Exit(1)
		}
		data := dataField(body)
		if data == nil {
			continue
		}
		runState, _ = data["run_state"].(string)
		fmt.Printf("run_state=%s\n", runState)
		if runState == "completed" || runState == "stopped" {
			if consensus, ok := data["consensus"].(map[string]interface{}); ok {
				fmt.Printf("Consensus (%v): %v\n", consensus["source"], consensus["text"])
			}
			break
		}
	}

	// 8. Cast a vote for the first backend
	color.Yellow("\n[COUNCIL] 8. Cast Vote")
	resp, body, err = sendRequest("POST", "/council/v1/"+councilID+"/vote", map[string]interface{}{
		"backend_id": backendIDs[0],
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		if data := dataField(body); data != nil {
			fmt.Printf("Votes: %v\n", data["votes"])
		}
	}

	// 9. Issue a stream ticket for the research session
	color.Yellow("\n[STREAM] 9. Issue Stream Ticket")
	resp, body, err = sendRequest("POST", "/stream/v1/ticket", map[string]interface{}{
		"session_id": researchID,
	})
	if err != nil {
		color.Red("Failed: %v", err)
	} else {
		color.Green("Status: %s", resp.Status)
		var ticketResp map[string]interface{}
		json.Unmarshal(body, &ticketResp)
		prettyPrint(ticketResp)
	}

	color.Cyan("\n✅ Test Sequence Complete")
}
