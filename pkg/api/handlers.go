package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/segmentio/ksuid"

	"github.com/torvik/yggdb/pkg/codec"
	"github.com/torvik/yggdb/pkg/expr"
	"github.com/torvik/yggdb/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

type rowResponse struct {
	ID        string                 `json:"id"`
	Kind      string                 `json:"kind"`
	Fields    map[string]interface{} `json:"fields"`
	Timestamp int64                  `json:"timestamp_us,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) kindParam(r *http.Request) (store.RowKind, *codec.Schema, error) {
	var kind store.RowKind
	switch chi.URLParam(r, "kind") {
	case "vertex":
		kind = store.KindVertex
	case "edge":
		kind = store.KindEdge
	default:
		return 0, nil, fmt.Errorf("unknown row kind %q", chi.URLParam(r, "kind"))
	}
	schema, ok := s.schemas[kind]
	if !ok {
		return 0, nil, fmt.Errorf("no schema configured for %s rows", kind)
	}
	return kind, schema, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSchema describes a kind's field layout.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	kind, schema, err := s.kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	type fieldInfo struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Nullable bool   `json:"nullable"`
		Default  bool   `json:"has_default"`
	}
	fields := make([]fieldInfo, schema.NumFields())
	for i := range fields {
		f := schema.Field(i)
		fields[i] = fieldInfo{
			Name:     f.Name,
			Type:     f.Type.String(),
			Nullable: f.Nullable,
			Default:  f.HasDefault(),
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"kind":    kind.String(),
		"version": schema.Version(),
		"fields":  fields,
	})
}

// handlePutRow encodes the JSON body through the row writer and stores it.
func (s *Server) handlePutRow(w http.ResponseWriter, r *http.Request) {
	kind, schema, err := s.kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	writer, err := codec.NewRowWriter(schema)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writer.Resolver = expr.NewEvaluator()

	for name, raw := range fields {
		idx := schema.FieldIndex(name)
		if idx < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("unknown field %q", name))
			return
		}
		v, err := jsonToValue(schema.Field(idx), raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if v.IsNull() {
			err = writer.SetNull(idx)
		} else {
			err = writer.SetValue(idx, v)
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := writer.Finish(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	encoded, err := writer.Encoded()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	id, err := s.store.Put(kind, encoded)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

// handleGetRow fetches and decodes one row.
func (s *Server) handleGetRow(w http.ResponseWriter, r *http.Request) {
	kind, schema, err := s.kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid row id: %w", err))
		return
	}

	encoded, err := s.store.Get(kind, id)
	if errors.Is(err, store.ErrRowNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	reader, err := codec.NewRowReader(schema, encoded)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	resp := rowResponse{
		ID:        id.String(),
		Kind:      kind.String(),
		Fields:    make(map[string]interface{}, schema.NumFields()),
		Timestamp: reader.Timestamp(),
	}
	for i := 0; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		v, err := reader.ValueByIndex(i)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		resp.Fields[f.Name] = valueToJSON(f, v)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteRow removes one row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	kind, _, err := s.kindParam(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	id, err := ksuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid row id: %w", err))
		return
	}
	if err := s.store.Delete(kind, id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
