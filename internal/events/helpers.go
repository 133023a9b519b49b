package events

import (
	"encoding/json"
	"fmt"
)

// SetRunStartedData sets the Data field with RunStartedData in a type-safe way.
func (e *Event) SetRunStartedData(data RunStartedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RunStartedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRunStartedData retrieves RunStartedData from the Data field.
func (e *Event) GetRunStartedData() (*RunStartedData, error) {
	var data RunStartedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RunStartedData: %w", err)
	}
	return &data, nil
}

// SetRunCompletedData sets the Data field with RunCompletedData in a type-safe way.
func (e *Event) SetRunCompletedData(data RunCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert RunCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetRunCompletedData retrieves RunCompletedData from the Data field.
func (e *Event) GetRunCompletedData() (*RunCompletedData, error) {
	var data RunCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse RunCompletedData: %w", err)
	}
	return &data, nil
}

// SetToolCompletedData sets the Data field with ToolCompletedData in a type-safe way.
func (e *Event) SetToolCompletedData(data ToolCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert ToolCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetToolCompletedData retrieves ToolCompletedData from the Data field.
func (e *Event) GetToolCompletedData() (*ToolCompletedData, error) {
	var data ToolCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse ToolCompletedData: %w", err)
	}
	return &data, nil
}

// SetAggregationCompletedData sets the Data field with AggregationCompletedData in a type-safe way.
func (e *Event) SetAggregationCompletedData(data AggregationCompletedData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert AggregationCompletedData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetAggregationCompletedData retrieves AggregationCompletedData from the Data field.
func (e *Event) GetAggregationCompletedData() (*AggregationCompletedData, error) {
	var data AggregationCompletedData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse AggregationCompletedData: %w", err)
	}
	return &data, nil
}

// structToMap converts a struct to map[string]interface{} using JSON marshaling.
func structToMap(data interface{}) (map[string]interface{}, error) {
	bytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// mapToStruct converts a map[string]interface{} to a struct using JSON unmarshaling.
func mapToStruct(dataMap map[string]interface{}, target interface{}) error {
	bytes, err := json.Marshal(dataMap)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, target)
}

// SetWatchTriggeredData sets the Data field with WatchTriggeredData in a type-safe way.
func (e *Event) SetWatchTriggeredData(data WatchTriggeredData) error {
	dataMap, err := structToMap(data)
	if err != nil {
		return fmt.Errorf("failed to convert WatchTriggeredData: %w", err)
	}
	e.Data = dataMap
	return nil
}

// GetWatchTriggeredData retrieves WatchTriggeredData from the Data field.
func (e *Event) GetWatchTriggeredData() (*WatchTriggeredData, error) {
	var data WatchTriggeredData
	if err := mapToStruct(e.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to parse WatchTriggeredData: %w", err)
	}
	return &data, nil
}
