package metrics

import (
	"github.com/samber/do/v2"

	"github.com/khabaroff/meeting-minutes-webhooks/src/services"
)

// RegisterDI provides the exporter and exposes it as the pipeline metrics sink
func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*OTelExporter, error) {
		var size SizeFunc
		cache := do.MustInvoke[services.EventCache](i)
		if mc, ok := cache.(*services.MemoryEventCache); ok {
			size = func() int64 { return int64(mc.Len()) }
		}
		return NewOTelExporter(size)
	})

	do.Provide(injector, func(i do.Injector) (services.PipelineMetrics, error) {
		return do.Invoke[*OTelExporter](i)
	})
}
