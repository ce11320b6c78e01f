// Copyright (c) 2024-present TaskFlow, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package call

type Metrics interface {
	IncWSMessages(msgType, direction string)
	SetPeers(n int)
	IncNegotiationErrors()
	IncMediaErrors(code string)
	IncSignalRoutingMisses()
	IncReportErrors()
	ObserveCallDuration(seconds float64)
}

type noopMetrics struct{}

func (noopMetrics) IncWSMessages(_, _ string)          {}
func (noopMetrics) SetPeers(_ int)                     {}
func (noopMetrics) IncNegotiationErrors()              {}
func (noopMetrics) IncMediaErrors(_ string)            {}
func (noopMetrics) IncSignalRoutingMisses()            {}
func (noopMetrics) IncReportErrors()                   {}
func (noopMetrics) ObserveCallDuration(_ float64)      {}
