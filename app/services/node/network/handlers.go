package network

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
)

// statusResponse mirrors the chain-info fields a peer needs to decide
// whether it is behind.
type statusResponse struct {
	Height       uint64  `json:"height"`
	Difficulty   float32 `json:"difficulty"`
	TopBlockHash string  `json:"top_block_hash"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, params map[string]string) {
	info, err := s.engine.ChainInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Height:       info.Height,
		Difficulty:   info.Difficulty,
		TopBlockHash: hex.EncodeToString(info.TopBlockHash[:]),
	})
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	raw, err := hex.DecodeString(params["hash"])
	if err != nil || len(raw) != 32 {
		http.Error(w, "hash must be 32 hex-encoded bytes", http.StatusBadRequest)
		return
	}

	var hash [32]byte
	copy(hash[:], raw)

	blk, found, err := s.engine.GetBlock(hash)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "block not found", http.StatusNotFound)
		return
	}

	bs, err := blk.ToBytes()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.Write(bs)
}

// proposeBlockRequest is the shape checked before a decoded block reaches
// the engine: structural nonsense (a height-zero block, an unsigned
// header) is rejected at the boundary with a 400 rather than burning an
// engine pass.
type proposeBlockRequest struct {
	Height    uint64 `validate:"required"`
	Signature []byte `validate:"required"`
}

func (s *Server) handleProposeBlock(w http.ResponseWriter, r *http.Request, params map[string]string) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	blk, err := database.BlockFromBytes(body)
	if err != nil {
		http.Error(w, "malformed block envelope", http.StatusBadRequest)
		return
	}

	req := proposeBlockRequest{Height: blk.Header.Height, Signature: blk.Header.Signature}
	if msg := checkRequest(req); msg != "" {
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	if err := s.engine.AddBlock(blk); err != nil {
		if s.metrics != nil {
			if ce, ok := err.(*database.ChainError); ok {
				s.metrics.RecordRejection(ce.Kind)
			} else {
				s.metrics.RecordRejection(database.KindOther)
			}
		}
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if s.metrics != nil {
		if info, err := s.engine.ChainInfo(); err == nil {
			s.metrics.Observe(info)
		}
	}

	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
