// Package httpapi is the optional administrative HTTP surface over a
// *runtime.Runtime: process introspection and control, plus a thin VFS
// front door. It is a convenience for hosting pnix behind a control
// plane — every route is a direct wrapper over the runtime package's
// embedding API, and none of it is part of the core contract.
package httpapi

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rkvdev/pnix/httpapi/middleware"
	"github.com/rkvdev/pnix/internal/kernel"
	"github.com/rkvdev/pnix/internal/vfs"
	"github.com/rkvdev/pnix/pkg/fmtt"
	"github.com/rkvdev/pnix/pkg/jsonx"
	"github.com/rkvdev/pnix/runtime"
)

// validate checks DTO-level required-field constraints after
// jsonx.ParseStrictJSONBody has already confirmed the body is well-formed,
// unknown-field-free JSON. The two are complementary: jsonx owns shape,
// validate owns presence (ParseStrictJSONBody accepts a present zero value,
// which is exactly what a caller who forgot a field also produces).
var validate = validator.New()

// bindStrictJSON decodes and validates req's body into dst, writing a 400
// and returning false on either failure. Handlers that need a parsed body
// should use this instead of calling jsonx.ParseStrictJSONBody directly.
func bindStrictJSON[T any](c *gin.Context, dst *T) bool {
	if err := jsonx.ParseStrictJSONBody(c.Request, dst); err != nil {
		_ = c.Error(err)
		c.JSON(400, gin.H{"message": err.Error()})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		_ = c.Error(err)
		c.JSON(400, gin.H{"message": err.Error()})
		return false
	}
	return true
}

// Options configures New beyond what it reads from rt.Config().
type Options struct {
	// MaxConcurrent caps in-flight requests (see middleware.CapConcurrentRequests).
	// 0 picks a sane default.
	MaxConcurrent int
	// PSCacheTTL controls how long GET /api/ps snapshots are reused across
	// concurrent pollers. 0 picks a sane default.
	PSCacheTTL time.Duration
	// Dev, when true, installs a permissive CORS policy for local front-end
	// development.
	Dev bool
}

// api bundles the runtime and caches every handler closes over.
type api struct {
	rt  *runtime.Runtime
	log *zap.Logger
	ps  *psCache
}

// New builds the gin.Engine that serves rt's administrative surface. It
// does not call Run/ListenAndServe — the embedding host (cmd/pnixd, or a
// caller's own binary) owns the listener and its lifecycle.
func New(rt *runtime.Runtime, opts Options) *gin.Engine {
	log := rt.Logger()
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("httpapi")

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 64
	}

	a := &api{rt: rt, log: log, ps: newPSCache(rt, opts.PSCacheTTL)}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(gin.Recovery()) // outermost

	if opts.Dev || os.Getenv("ENV") == "dev" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.CapConcurrentRequests(opts.MaxConcurrent))
	r.Use(zapLogger(log))
	r.Use(secure.New(secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	}))

	token := rt.Config().AdminToken
	authed := r.Group("/api")
	authed.Use(middleware.BearerAuth(token))

	r.GET("/api/ps", a.listProcesses)
	authed.GET("/ps/:pid", middleware.RequireValidPID(), a.getProcess)
	authed.GET("/ps/:pid/logs", middleware.RequireValidPID(), a.getProcessLogs)
	authed.POST("/spawn", a.spawn)
	authed.POST("/ps/:pid/signal", middleware.RequireValidPID(), a.signal)
	authed.POST("/ps/:pid/kill", middleware.RequireValidPID(), a.kill)
	authed.POST("/ps/:pid/interrupt", middleware.RequireValidPID(), a.interrupt)
	authed.POST("/terminate-all", a.terminateAll)
	authed.POST("/destroy", a.destroy)

	authed.GET("/vfs/*path", a.vfsRead)
	authed.POST("/vfs/mkdir", a.vfsMkdir)
	authed.POST("/vfs/mkfile", a.vfsMkfile)
	authed.POST("/vfs/write", a.vfsWrite)
	authed.DELETE("/vfs/*path", a.vfsRemove)
	authed.POST("/vfs/move", a.vfsMove)
	authed.POST("/vfs/copy", a.vfsCopy)
	authed.POST("/vfs/attrs", a.vfsSetAttrs)

	authed.GET("/debug/dump", a.debugDump)

	return r
}

// zapLogger logs one structured line per request, at a level chosen by
// response status, with any c.Error-attached errors joined in.
func zapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		var errs []error
		for _, ge := range c.Errors {
			if ge.Err != nil {
				errs = append(errs, ge.Err)
			}
		}
		joined := errors.Join(errs...)

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Duration("latency", time.Since(start)),
		}
		if joined != nil {
			fields = append(fields, zap.Error(joined))
		}

		switch {
		case status >= 500:
			log.Error("request", fields...)
		case status >= 400:
			log.Warn("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}

func pidParam(c *gin.Context) kernel.PID {
	v, _ := c.Get(middleware.PIDParamKey)
	id, _ := v.(uint32)
	return kernel.PID(id)
}

// --- process endpoints -------------------------------------------------

func (a *api) listProcesses(c *gin.Context) {
	c.JSON(200, a.ps.Get())
}

func (a *api) getProcess(c *gin.Context) {
	p, ok := a.rt.Process(pidParam(c))
	if !ok {
		c.JSON(404, gin.H{"message": "no such process"})
		return
	}
	c.JSON(200, newProcessSummary(p))
}

func (a *api) getProcessLogs(c *gin.Context) {
	p, ok := a.rt.Process(pidParam(c))
	if !ok {
		c.JSON(404, gin.H{"message": "no such process"})
		return
	}
	n := 0
	if raw := c.Query("lines"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			n = v
		}
	}
	c.JSON(200, gin.H{"lines": p.Logs().Tail(n)})
}

func (a *api) spawn(c *gin.Context) {
	var req spawnRequest
	if !bindStrictJSON(c, &req) {
		return
	}

	pid, err := a.rt.SpawnWithEnv(req.Args, req.Env)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, kernel.ErrCommandNotFound) {
			c.JSON(422, gin.H{"message": err.Error()})
			return
		}
		c.JSON(500, gin.H{"message": err.Error()})
		return
	}
	a.ps.Invalidate()
	c.JSON(201, gin.H{"pid": uint32(pid)})
}

func (a *api) signal(c *gin.Context) {
	var req signalRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	ok := a.rt.Signal(pidParam(c), kernel.Signal(req.Signal))
	a.ps.Invalidate()
	if !ok {
		c.JSON(404, gin.H{"message": "no such process"})
		return
	}
	c.Status(204)
}

func (a *api) kill(c *gin.Context) {
	ok := a.rt.Kill(pidParam(c))
	a.ps.Invalidate()
	if !ok {
		c.JSON(404, gin.H{"message": "no such process"})
		return
	}
	c.Status(204)
}

func (a *api) interrupt(c *gin.Context) {
	ok := a.rt.Interrupt(pidParam(c))
	a.ps.Invalidate()
	if !ok {
		c.JSON(404, gin.H{"message": "no such process"})
		return
	}
	c.Status(204)
}

func (a *api) terminateAll(c *gin.Context) {
	a.rt.TerminateAll()
	a.ps.Invalidate()
	c.Status(204)
}

func (a *api) destroy(c *gin.Context) {
	a.rt.Destroy(64)
	a.ps.Invalidate()
	c.Status(204)
}

// --- VFS endpoints -------------------------------------------------------

func (a *api) vfsRead(c *gin.Context) {
	path := c.Param("path")
	kind, res := a.rt.VFS().GetType(path)
	if !res.Ok() {
		c.JSON(vfsStatus(res), gin.H{"message": res.String()})
		return
	}
	if kind == vfs.KindDirectory {
		names, res := a.rt.VFS().ListDir(path)
		if !res.Ok() {
			c.JSON(vfsStatus(res), gin.H{"message": res.String()})
			return
		}
		c.JSON(200, gin.H{"type": "dir", "entries": names})
		return
	}
	data, res := a.rt.VFS().Read(path)
	if !res.Ok() {
		c.JSON(vfsStatus(res), gin.H{"message": res.String()})
		return
	}
	c.JSON(200, gin.H{"type": "file", "data": string(data)})
}

func (a *api) vfsMkdir(c *gin.Context) {
	var req mkdirRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	res := a.rt.VFS().Mkdir(req.Path)
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsMkfile(c *gin.Context) {
	var req mkfileRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	res := a.rt.VFS().Mkfile(req.Path, []byte(req.Data))
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsWrite(c *gin.Context) {
	var req writeRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	res := a.rt.VFS().Write(req.Path, []byte(req.Data))
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsRemove(c *gin.Context) {
	res := a.rt.VFS().Remove(c.Param("path"))
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsMove(c *gin.Context) {
	var req moveCopyRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	res := a.rt.VFS().Move(req.Src, req.Dst)
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsCopy(c *gin.Context) {
	var req moveCopyRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	res := a.rt.VFS().Copy(req.Src, req.Dst)
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

func (a *api) vfsSetAttrs(c *gin.Context) {
	var req vfsAttrsRequest
	if !bindStrictJSON(c, &req) {
		return
	}
	ro, ok := req.ReadOnly.Value()
	if !ok {
		c.JSON(400, gin.H{"message": "read_only must be set to true or false"})
		return
	}
	res := a.rt.VFS().SetReadOnly(req.Path, ro)
	c.JSON(vfsStatus(res), gin.H{"message": res.String()})
}

// vfsStatus maps a vfs.Result onto the HTTP status that best fits the
// equivalent Go-error case (404/409/423/400/500).
func vfsStatus(res vfs.Result) int {
	switch res {
	case vfs.OK:
		return 200
	case vfs.NotFound:
		return 404
	case vfs.AlreadyExists:
		return 409
	case vfs.NotEmpty:
		return 409
	case vfs.ReadOnly:
		return 423
	case vfs.InvalidPath, vfs.NotADirectory, vfs.NotAFile:
		return 400
	default:
		return 500
	}
}

// --- debug ---------------------------------------------------------------

func (a *api) debugDump(c *gin.Context) {
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.String(200, fmtt.DumpSnapshot(struct {
		Processes []*kernel.Process
	}{Processes: a.rt.Processes()}))
}
