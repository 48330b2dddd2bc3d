package api

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/checkmarble/agent-eval-backend/usecases"
)

const (
	readHeaderTimeout = 10 * time.Second
	// margin over the route budgets, so that the timeout middleware answers before the server cuts the connection
	serverTimeoutMargin = 5 * time.Second
)

type Option func(*serverOptions)

// WithLocalTest binds the server to localhost only.
func WithLocalTest(localTest bool) Option {
	return func(o *serverOptions) {
		o.host = "0.0.0.0"
		if localTest {
			o.host = "localhost"
		}
	}
}

type serverOptions struct {
	host string
}

func NewServer(
	router *gin.Engine,
	conf Configuration,
	uc usecases.Usecases,
	opts ...Option,
) *http.Server {
	o := serverOptions{host: "0.0.0.0"}
	for _, opt := range opts {
		opt(&o)
	}

	addRoutes(router, conf, uc)

	routeBudget := max(conf.GenerationTimeout, conf.DefaultTimeout)

	return &http.Server{
		Addr:              net.JoinHostPort(o.host, conf.Port),
		ReadHeaderTimeout: readHeaderTimeout,
		// uploads are read within the generation budget
		ReadTimeout:    routeBudget + serverTimeoutMargin,
		WriteTimeout:   routeBudget + serverTimeoutMargin,
		IdleTimeout:    routeBudget + serverTimeoutMargin,
		MaxHeaderBytes: 1 << 20,
		Handler:        h2c.NewHandler(router, &http2.Server{}),
	}
}
