package memory

import (
	"github.com/next-trace/scg-dispatch/adapters/inmemory"
	memcache "github.com/next-trace/scg-dispatch/cache/memory"
	"github.com/next-trace/scg-dispatch/dispatcher"
)

// New constructs a dispatcher backed entirely by in-process components: the
// TTL query cache and a recording sink. The sink is returned alongside so
// tests and examples can inspect emitted dispatch records.
func New(opts ...dispatcher.Option) (*dispatcher.Dispatcher, *inmemory.Sink) {
	sink := inmemory.New()

	base := []dispatcher.Option{
		dispatcher.WithCache(memcache.New()),
		dispatcher.WithRecordSink(sink),
	}

	return dispatcher.New(append(base, opts...)...), sink
}
