package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sekai02/scull/internal/api"
	"github.com/sekai02/scull/internal/device"
	"github.com/sekai02/scull/internal/persistence"
	"github.com/sekai02/scull/internal/storage"
)

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/devices", handleDevices)
	mux.HandleFunc("/v1/devices/", handleDeviceOps)
	mux.HandleFunc("/v1/handles/", handleHandleOps)
	mux.HandleFunc("/v1/snapshots", handleSnapshots)
	mux.HandleFunc("/v1/snapshots/", handleSnapshotDelete)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, device.ErrDeviceNotFound),
		errors.Is(err, device.ErrHandleNotFound),
		errors.Is(err, persistence.ErrSnapshotNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrInvalidArgument),
		errors.Is(err, device.ErrBadMode),
		errors.Is(err, persistence.ErrBadName),
		errors.Is(err, persistence.ErrConfigMismatch):
		status = http.StatusBadRequest
	case errors.Is(err, device.ErrNotReadable),
		errors.Is(err, device.ErrNotWritable):
		status = http.StatusForbidden
	case errors.Is(err, storage.ErrOutOfMemory):
		status = http.StatusInsufficientStorage
	case errors.Is(err, storage.ErrInterrupted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, api.ErrNoSnapshots):
		status = http.StatusNotImplemented
	}
	http.Error(w, err.Error(), status)
}

type deviceInfo struct {
	api.DeviceStat
	HumanSize string `json:"human_size"`
	HumanUsed string `json:"human_reserved"`
}

func handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	devices, err := service.DeviceList(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	result := make([]deviceInfo, 0, len(devices))
	for _, id := range devices {
		st, err := service.Stat(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		result = append(result, deviceInfo{
			DeviceStat: st,
			HumanSize:  humanize.IBytes(uint64(st.Size)),
			HumanUsed:  humanize.IBytes(uint64(st.Reserved)),
		})
	}

	writeJSON(w, http.StatusOK, map[string][]deviceInfo{"devices": result})
}

func handleDeviceOps(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/devices/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	dev, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "invalid device ID", http.StatusBadRequest)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch parts[1] {
	case "open":
		handleOpen(w, r, dev)
	case "truncate":
		handleTruncate(w, r, dev)
	case "snapshot":
		handleSnapshot(w, r, dev)
	case "restore":
		handleRestore(w, r, dev)
	default:
		http.Error(w, "unknown operation", http.StatusNotFound)
	}
}

func handleOpen(w http.ResponseWriter, r *http.Request, dev uint64) {
	handle, err := service.Open(r.Context(), dev, r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"handle": handle})
}

func handleTruncate(w http.ResponseWriter, r *http.Request, dev uint64) {
	if err := service.Truncate(r.Context(), dev); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleSnapshot(w http.ResponseWriter, r *http.Request, dev uint64) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing snapshot name", http.StatusBadRequest)
		return
	}

	m, err := service.Snapshot(r.Context(), dev, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func handleRestore(w http.ResponseWriter, r *http.Request, dev uint64) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing snapshot name", http.StatusBadRequest)
		return
	}

	m, err := service.Restore(r.Context(), dev, name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

func handleHandleOps(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/handles/")
	parts := strings.Split(path, "/")

	if parts[0] == "" || len(parts) > 2 {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	handle := parts[0]

	if len(parts) == 2 && parts[1] == "seek" {
		handleSeek(w, r, handle)
		return
	}

	switch r.Method {
	case http.MethodGet:
		handleRead(w, r, handle)
	case http.MethodPut:
		handleWrite(w, r, handle)
	case http.MethodDelete:
		handleRelease(w, r, handle)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func handleRead(w http.ResponseWriter, r *http.Request, handle string) {
	length := 1 << 20

	if lenStr := r.URL.Query().Get("len"); lenStr != "" {
		var err error
		length, err = strconv.Atoi(lenStr)
		if err != nil || length < 0 {
			http.Error(w, "invalid length", http.StatusBadRequest)
			return
		}
	}

	data, err := service.Read(r.Context(), handle, length)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func handleWrite(w http.ResponseWriter, r *http.Request, handle string) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := service.Write(r.Context(), handle, data)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"written": n})
}

func handleSeek(w http.ResponseWriter, r *http.Request, handle string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	off, err := strconv.ParseInt(r.URL.Query().Get("off"), 10, 64)
	if err != nil {
		http.Error(w, "invalid offset", http.StatusBadRequest)
		return
	}

	whence := io.SeekStart
	if whenceStr := r.URL.Query().Get("whence"); whenceStr != "" {
		whence, err = strconv.Atoi(whenceStr)
		if err != nil {
			http.Error(w, "invalid whence", http.StatusBadRequest)
			return
		}
	}

	pos, err := service.Seek(r.Context(), handle, off, whence)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"position": pos})
}

func handleRelease(w http.ResponseWriter, r *http.Request, handle string) {
	if err := service.Release(context.Background(), handle); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := service.Snapshots(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string][]persistence.Manifest{"snapshots": list})
}

func handleSnapshotDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/v1/snapshots/")
	if err := service.DeleteSnapshot(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
