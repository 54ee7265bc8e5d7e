// Package api exposes the storage stack over HTTP. File operations are
// submitted as prioritized async requests; slow paths return a request
// id the client can poll instead of blocking the handler.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oslab/go-simfs/aio"
	"github.com/oslab/go-simfs/buffer"
	"github.com/oslab/go-simfs/fs"
	"github.com/oslab/go-simfs/ipc"
	"github.com/oslab/go-simfs/sched"
)

// waitBudget bounds how long a synchronous handler waits for its async
// request before falling back to a 202 with the request id.
const waitBudget = 5 * time.Second

type Server struct {
	fsys   *fs.FileSystem
	cache  *buffer.Manager
	disp   *aio.Dispatcher
	sch    *sched.Scheduler
	runner *sched.CommandRunner
	pipes  *ipc.PipeManager
	syncs  *ipc.SyncManager
}

func MkServer(fsys *fs.FileSystem, cache *buffer.Manager, disp *aio.Dispatcher,
	sch *sched.Scheduler, runner *sched.CommandRunner,
	pipes *ipc.PipeManager, syncs *ipc.SyncManager) *Server {
	return &Server{
		fsys:   fsys,
		cache:  cache,
		disp:   disp,
		sch:    sch,
		runner: runner,
		pipes:  pipes,
		syncs:  syncs,
	}
}

// Engine builds the gin router with all routes registered.
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/files", s.createFile)
	r.GET("/files", s.listFiles)
	r.GET("/files/:name", s.readFile)
	r.PUT("/files/:name", s.writeFile)
	r.DELETE("/files/:name", s.deleteFile)

	r.GET("/requests/:id", s.requestStatus)
	r.GET("/status", s.status)

	r.POST("/commands", s.runCommand)
	r.GET("/commands/results", s.commandResult)

	return r
}

type createReq struct {
	Name     string `json:"name" binding:"required"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

type writeReq struct {
	Content    string `json:"content"`
	BlockIndex *int   `json:"block_index"`
	Priority   int    `json:"priority"`
}

func reqPriority(p int) int {
	if p < int(sched.High) || p > int(sched.Low) {
		return int(sched.Medium)
	}
	return p
}

// errStatus maps file system sentinels onto HTTP codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, fs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, fs.ErrExists):
		return http.StatusConflict
	case errors.Is(err, fs.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, fs.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, fs.ErrOutOfSpace), errors.Is(err, fs.ErrIndexRange):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) createFile(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id := s.disp.SubmitCreate(req.Name, []byte(req.Content), nil, reqPriority(req.Priority))
	s.respondOutcome(c, id, http.StatusCreated, gin.H{"filename": req.Name})
}

func (s *Server) listFiles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": s.fsys.ListDir()})
}

func (s *Server) readFile(c *gin.Context) {
	name := c.Param("name")
	blockIdx := -1
	if raw := c.Query("block_index"); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "block_index must be a non-negative integer"})
			return
		}
		blockIdx = idx
	}

	id := s.disp.SubmitRead(name, blockIdx, nil, reqPriority(prioQuery(c)))
	if !s.disp.WaitFor(id, waitBudget) {
		s.respondFailure(c, id)
		return
	}
	data, err := s.disp.RequestResult(id)
	if err != nil {
		c.JSON(errStatus(err), gin.H{"error": err.Error(), "request_id": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": id,
		"filename":   name,
		"content":    string(data),
		"length":     len(data),
	})
}

func (s *Server) writeFile(c *gin.Context) {
	name := c.Param("name")
	var req writeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	blockIdx := -1
	if req.BlockIndex != nil {
		if *req.BlockIndex < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "block_index must be a non-negative integer"})
			return
		}
		blockIdx = *req.BlockIndex
	}
	id := s.disp.SubmitWrite(name, blockIdx, []byte(req.Content), nil, reqPriority(req.Priority))
	s.respondOutcome(c, id, http.StatusOK, gin.H{"filename": name})
}

func (s *Server) deleteFile(c *gin.Context) {
	name := c.Param("name")
	id := s.disp.SubmitDelete(name, nil, reqPriority(prioQuery(c)))
	s.respondOutcome(c, id, http.StatusOK, gin.H{"filename": name})
}

func (s *Server) requestStatus(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}
	info, ok := s.disp.RequestStatus(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// status aggregates the observable state of every layer.
func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"disk":       s.fsys.DiskInfo(),
		"files":      s.fsys.ListDir(),
		"buffer":     gin.H{"pages": s.cache.Status(), "stats": s.cache.Stats()},
		"dispatcher": gin.H{"pending": s.disp.Pending(), "stats": s.disp.Stats()},
		"scheduler":  gin.H{"queues": s.sch.QueueStatus(), "processes": s.sch.Processes()},
		"pipes":      s.pipes.List(),
		"conds":      s.syncs.ListConds(),
	})
}

type commandReq struct {
	Cmd      string `json:"cmd" binding:"required"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// runCommand schedules a maintenance command as a process. Unlike the
// /files routes these run through the priority scheduler, so a burst of
// commands executes strictly high-before-low.
func (s *Server) runCommand(c *gin.Context) {
	var req commandReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var fn func() (interface{}, error)
	switch req.Cmd {
	case "flush":
		fn = func() (interface{}, error) { return nil, s.cache.FlushAll() }
	case "flush_file":
		name := req.Name
		fn = func() (interface{}, error) { return nil, s.cache.FlushFile(name) }
	case "list":
		fn = func() (interface{}, error) { return s.fsys.ListDir(), nil }
	case "disk_info":
		fn = func() (interface{}, error) { return s.fsys.DiskInfo(), nil }
	case "format":
		fn = func() (interface{}, error) { return nil, s.fsys.Format() }
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown command: " + req.Cmd})
		return
	}

	pid := s.runner.Execute(req.Cmd, sched.Priority(reqPriority(req.Priority)), fn)
	c.JSON(http.StatusAccepted, gin.H{"pid": pid, "cmd": req.Cmd})
}

// commandResult pops the oldest unread outcome from the results pipe.
func (s *Server) commandResult(c *gin.Context) {
	res, ok := s.runner.Result(waitBudget)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, res)
}

func prioQuery(c *gin.Context) int {
	raw := c.Query("priority")
	if raw == "" {
		return int(sched.Medium)
	}
	p, err := strconv.Atoi(raw)
	if err != nil {
		return int(sched.Medium)
	}
	return p
}

// respondOutcome waits briefly for the request; on success it returns
// the given code, on failure the mapped error, and on timeout a 202
// carrying the request id for later polling.
func (s *Server) respondOutcome(c *gin.Context, id uint64, okCode int, extra gin.H) {
	if s.disp.WaitFor(id, waitBudget) {
		body := gin.H{"request_id": id, "status": "completed"}
		for k, v := range extra {
			body[k] = v
		}
		c.JSON(okCode, body)
		return
	}
	s.respondFailure(c, id)
}

func (s *Server) respondFailure(c *gin.Context, id uint64) {
	info, ok := s.disp.RequestStatus(id)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request vanished", "request_id": id})
		return
	}
	if info.Error != "" {
		if _, err := s.disp.RequestResult(id); err != nil {
			c.JSON(errStatus(err), gin.H{"error": err.Error(), "request_id": id})
			return
		}
	}
	c.JSON(http.StatusAccepted, gin.H{"request_id": id, "status": info.Status})
}
