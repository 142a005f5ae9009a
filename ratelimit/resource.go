package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"resource-ratelimit/ratelimit/application"
	"resource-ratelimit/ratelimit/domain"
	"resource-ratelimit/ratelimit/infra"

	"github.com/go-chi/chi/v5"
)

// Um recurso declara cada operação implementando a interface de método
// correspondente. Composição explícita, sem herança: o wrapper testa qual
// interface o valor base satisfaz antes de delegar.
type (
	Getter interface {
		Get(w http.ResponseWriter, r *http.Request)
	}
	Poster interface {
		Post(w http.ResponseWriter, r *http.Request)
	}
	Putter interface {
		Put(w http.ResponseWriter, r *http.Request)
	}
	Deleter interface {
		Delete(w http.ResponseWriter, r *http.Request)
	}
	Patcher interface {
		Patch(w http.ResponseWriter, r *http.Request)
	}
)

// resourceMethods são as operações que um recurso pode expor.
var resourceMethods = []string{"get", "post", "put", "delete", "patch"}

// ResourceOptions configura o wrap de um recurso.
type ResourceOptions struct {
	// Methods é o subconjunto de operações que passa pelo gate
	// ("get", "post", "put", "delete", "patch"). Vazio = todas.
	Methods []string

	// Points/Duration/BlockDuration, quando presentes, constroem um
	// consumer dedicado uma única vez no wrap, com os valores mesclados por
	// cima dos padrões do Limiter.
	Points        int
	Duration      int
	BlockDuration int

	// PointsToConsume por chamada. <= 0 cai no padrão do Limiter.
	PointsToConsume int

	// Consumer explícito, usado quando Points/Duration/BlockDuration não
	// foram informados. Quando também é nil, vale o consumer padrão do
	// Limiter, resolvido em tempo de chamada.
	Consumer domain.Consumer

	// MaxConcurrent limita requisições em voo no recurso. 0 desliga.
	MaxConcurrent  int
	AcquireTimeout time.Duration
}

// Resource é o recurso embrulhado: expõe as cinco operações como
// http.HandlerFunc, cada uma precedida do gate quando listada em Methods.
type Resource struct {
	base    any
	limiter *Limiter

	// consumer nil significa "padrão do Limiter em tempo de chamada".
	consumer domain.Consumer
	points   int
	limited  map[string]bool
	conc     application.Concurrency
}

// WrapResource embrulha base com o gate deste Limiter.
//
// O check dispara para todo método listado, exista ou não a operação no
// valor base; quando a operação não existe, o check consome a cota e nada
// roda em seguida. Métodos fora da lista delegam direto, sem gate.
func (l *Limiter) WrapResource(base any, opts ResourceOptions) *Resource {
	limited := make(map[string]bool, len(resourceMethods))
	if len(opts.Methods) == 0 {
		for _, m := range resourceMethods {
			limited[m] = true
		}
	} else {
		for _, m := range opts.Methods {
			limited[strings.ToLower(strings.TrimSpace(m))] = true
		}
	}

	// Resolução em tempo de wrap: política própria constrói um consumer
	// dedicado uma única vez; senão vale o explícito; senão o padrão do
	// Limiter, resolvido a cada chamada.
	var consumer domain.Consumer
	if opts.Points > 0 || opts.Duration > 0 || opts.BlockDuration > 0 {
		cfg := l.Defaults().Merge(domain.Config{
			Points:        opts.Points,
			Duration:      opts.Duration,
			BlockDuration: opts.BlockDuration,
		})
		consumer = infra.NewStore(cfg)
	} else if opts.Consumer != nil {
		consumer = opts.Consumer
	}

	res := &Resource{
		base:     base,
		limiter:  l,
		consumer: consumer,
		points:   opts.PointsToConsume,
		limited:  limited,
	}
	if opts.MaxConcurrent > 0 {
		res.conc = application.Concurrency{
			Pool:           infra.NewChanPool(opts.MaxConcurrent),
			AcquireTimeout: opts.AcquireTimeout,
		}
	}
	return res
}

func (res *Resource) Get(w http.ResponseWriter, r *http.Request)    { res.serve(w, r, "get") }
func (res *Resource) Post(w http.ResponseWriter, r *http.Request)   { res.serve(w, r, "post") }
func (res *Resource) Put(w http.ResponseWriter, r *http.Request)    { res.serve(w, r, "put") }
func (res *Resource) Delete(w http.ResponseWriter, r *http.Request) { res.serve(w, r, "delete") }
func (res *Resource) Patch(w http.ResponseWriter, r *http.Request)  { res.serve(w, r, "patch") }

func (res *Resource) serve(w http.ResponseWriter, r *http.Request, method string) {
	if res.limited[method] {
		consumer := res.consumer
		if consumer == nil {
			consumer = res.limiter.consumer()
		}

		key := res.limiter.Key(r)
		usage, err := res.limiter.check(r, key, consumer, res.points)
		if err != nil {
			res.limiter.writeLimitError(w, r, err)
			return
		}
		res.limiter.setRateLimitHeaders(w, key, usage, consumer)
	}

	if res.conc.Pool != nil {
		release, ok := res.conc.Acquire(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
			return
		}
		defer release()
	}

	// base sem a operação: o gate já consumiu; nada roda em seguida.
	switch method {
	case "get":
		if h, ok := res.base.(Getter); ok {
			h.Get(w, r)
		}
	case "post":
		if h, ok := res.base.(Poster); ok {
			h.Post(w, r)
		}
	case "put":
		if h, ok := res.base.(Putter); ok {
			h.Put(w, r)
		}
	case "delete":
		if h, ok := res.base.(Deleter); ok {
			h.Delete(w, r)
		}
	case "patch":
		if h, ok := res.base.(Patcher); ok {
			h.Patch(w, r)
		}
	}
}

// Routes monta as cinco operações em um router chi, pronto para Mount.
func (res *Resource) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", res.Get)
	r.Post("/", res.Post)
	r.Put("/", res.Put)
	r.Delete("/", res.Delete)
	r.Patch("/", res.Patch)
	return r
}
