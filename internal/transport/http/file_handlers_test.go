package http

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"
)

func uploadFile(t *testing.T, ts *testServer, token, name, content string, fields map[string]string) (int, FileResponse) {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/files/upload", &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()

	var out FileResponse
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode upload response: %v", err)
		}
	}
	return resp.StatusCode, out
}

func download(t *testing.T, ts *testServer, token string, id int64) (int, string) {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/files/"+itoa(id), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(data)
}

func TestFileUploadToRoom(t *testing.T) {
	ts := startTestServer(t, nil)
	aliceToken, alice := ts.register(t, "alice")
	bobToken, _ := ts.register(t, "bob")

	var room RoomResponse
	ts.doJSON(t, http.MethodPost, "/api/rooms", aliceToken, map[string]string{"name": "statistics"}, &room)
	var subject SubjectResponse
	ts.doJSON(t, http.MethodPost, "/api/rooms/"+itoa(room.ID)+"/subjects", aliceToken, map[string]string{"name": "regression"}, &subject)

	status, f := uploadFile(t, ts, aliceToken, "Notes.PDF", "least squares", map[string]string{
		"roomId":    itoa(room.ID),
		"subjectId": itoa(subject.ID),
	})
	if status != http.StatusCreated {
		t.Fatalf("upload: status %d", status)
	}
	if f.OriginalName != "Notes.PDF" || f.UploaderID != alice || f.FileSize != int64(len("least squares")) {
		t.Fatalf("unexpected file: %+v", f)
	}
	if f.SubjectID == nil || *f.SubjectID != subject.ID {
		t.Fatalf("file subject = %v, want %d", f.SubjectID, subject.ID)
	}

	var files []FileResponse
	ts.doJSON(t, http.MethodGet, "/api/rooms/"+itoa(room.ID)+"/files?subjectId="+itoa(subject.ID), aliceToken, nil, &files)
	if len(files) != 1 || files[0].ID != f.ID {
		t.Fatalf("unexpected room files: %+v", files)
	}

	if status, data := download(t, ts, aliceToken, f.ID); status != http.StatusOK || data != "least squares" {
		t.Fatalf("download: status %d body %q", status, data)
	}
	if status, _ := download(t, ts, bobToken, f.ID); status != http.StatusForbidden {
		t.Fatalf("non-member download: status %d", status)
	}

	if status := ts.doJSON(t, http.MethodDelete, "/api/files/"+itoa(f.ID), bobToken, nil, nil); status != http.StatusNotFound {
		t.Fatalf("delete by non-owner: status %d", status)
	}
	if status := ts.doJSON(t, http.MethodDelete, "/api/files/"+itoa(f.ID), aliceToken, nil, nil); status != http.StatusOK {
		t.Fatalf("delete: status %d", status)
	}
	if status, _ := download(t, ts, aliceToken, f.ID); status != http.StatusNotFound {
		t.Fatalf("download after delete: status %d", status)
	}
}

func TestFileUploadRejectsForeignRoom(t *testing.T) {
	ts := startTestServer(t, nil)
	aliceToken, _ := ts.register(t, "alice")
	bobToken, _ := ts.register(t, "bob")

	var room RoomResponse
	ts.doJSON(t, http.MethodPost, "/api/rooms", aliceToken, map[string]string{"name": "economics"}, &room)

	if status, _ := uploadFile(t, ts, bobToken, "a.txt", "x", map[string]string{"roomId": itoa(room.ID)}); status != http.StatusForbidden {
		t.Fatalf("non-member upload: status %d", status)
	}
	if status, _ := uploadFile(t, ts, aliceToken, "a.txt", "x", map[string]string{"subjectId": "1"}); status != http.StatusBadRequest {
		t.Fatalf("subject without room: status %d", status)
	}
}
