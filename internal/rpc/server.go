/*
Package rpc serves trained models over a line-delimited JSON-RPC 2.0 stream.

The server reads one request per line from stdin and writes one response
per line to stdout. Methods:
  - initialize: server name, version and method list
  - models/list: metadata of every stored model
  - model/eval: probability of every outcome for a context
  - model/best: the most probable outcome for a context
  - model/outcomes: outcome names and sizes of a model
  - features/search: keyword search over a model's predicates
*/
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/khanglvm/maxent/internal/model"
	"github.com/khanglvm/maxent/internal/search"
	"github.com/khanglvm/maxent/internal/storage"
)

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeModelNotFound  = -32001
	CodeServerError    = -32000
)

// maxLineSize bounds one request line.
const maxLineSize = 4 * 1024 * 1024

// ModelSource returns models by name. storage.ModelCache implements it.
type ModelSource interface {
	Get(name string) (*model.Model, error)
}

// Catalog lists stored models. storage.SQLiteStorage implements it.
type Catalog interface {
	ListModels() ([]storage.ModelInfo, error)
}

// Request is an incoming JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is an outgoing JSON-RPC response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Server answers model queries.
type Server struct {
	models  ModelSource
	catalog Catalog
	indexer *search.Indexer
	logger  *zap.Logger

	// indexed tracks which models have been added to the search index.
	indexMu sync.Mutex
	indexed map[string]bool
}

// NewServer creates a server. catalog and indexer may be nil, in which case
// models/list and features/search report an error.
func NewServer(models ModelSource, catalog Catalog, indexer *search.Indexer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		models:  models,
		catalog: catalog,
		indexer: indexer,
		logger:  logger,
		indexed: make(map[string]bool),
	}
}

// Run serves stdin to stdout until stdin is closed or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.Serve(ctx, os.Stdin, os.Stdout)
}

// Serve answers requests read from r, writing responses to w.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleRequest(line)
		if resp == nil {
			continue
		}
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}

	return scanner.Err()
}

// handleRequest processes one request line. Notifications get no response.
func (s *Server) handleRequest(data []byte) *Response {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return errorResponse(nil, CodeParseError, fmt.Sprintf("invalid JSON-RPC request: %v", err))
	}
	if req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "missing method")
	}

	s.logger.Debug("request", zap.String("method", req.Method), zap.Any("id", req.ID))

	result, err := s.dispatch(&req)
	if req.ID == nil {
		if err != nil {
			s.logger.Warn("notification failed", zap.String("method", req.Method), zap.Error(err))
		}
		return nil
	}
	if err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return errorResponse(req.ID, rpcErr.Code, rpcErr.Message)
		}
		if errors.Is(err, storage.ErrModelNotFound) {
			return errorResponse(req.ID, CodeModelNotFound, err.Error())
		}
		return errorResponse(req.ID, CodeServerError, err.Error())
	}
	return &Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) dispatch(req *Request) (interface{}, error) {
	switch req.Method {
	case "initialize":
		return s.handleInitialize()
	case "models/list":
		return s.handleModelsList()
	case "model/eval":
		return s.handleEval(req.Params)
	case "model/best":
		return s.handleBest(req.Params)
	case "model/outcomes":
		return s.handleOutcomes(req.Params)
	case "features/search":
		return s.handleFeatureSearch(req.Params)
	default:
		if req.ID == nil {
			// Unknown notifications are ignored.
			return nil, nil
		}
		return nil, &Error{Code: CodeMethodNotFound, Message: "Method not found: " + req.Method}
	}
}

func errorResponse(id interface{}, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: msg}}
}

func decodeParams(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return &Error{Code: CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf("invalid params: %v", err)}
	}
	return nil
}
