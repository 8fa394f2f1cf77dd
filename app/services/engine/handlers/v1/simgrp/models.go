package simgrp

// appTraceEntry represents one traced operation submitted for estimation.
type appTraceEntry struct {
	Op           string `json:"op" validate:"required,oneof=add sub mul cmpeq"`
	OperandSizes []int  `json:"operand_sizes" validate:"required,min=1"`
}

// appEstimate represents an ad hoc estimation request against the default
// weight table.
type appEstimate struct {
	BaselineGas uint64          `json:"baseline_gas" validate:"required"`
	Operations  []appTraceEntry `json:"operations" validate:"required,min=1,dive"`
}
