package provider

import "github.com/cloudwego/eino/schema"

// toEinoToolInfo converts provider-agnostic ToolDefinitions (a role's domain
// tools and its MCP Bridge tools) into Eino's schema.ToolInfo, the same
// JSON-Schema-to-ParameterInfo mapping the teacher's ConvertToEinoTools used.
func toEinoToolInfo(defs []*ToolDefinition) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(defs))
	for i, d := range defs {
		result[i] = &schema.ToolInfo{
			Name:        d.Name,
			Desc:        d.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(toEinoParams(d.Parameters)),
		}
	}
	return result
}

// toEinoParams converts a JSON-Schema-shaped "properties"/"required" map
// into Eino's ParameterInfo map.
func toEinoParams(jsonSchema map[string]any) map[string]*schema.ParameterInfo {
	if jsonSchema == nil {
		return nil
	}

	propsRaw, _ := jsonSchema["properties"].(map[string]any)
	if propsRaw == nil {
		return nil
	}

	required := make(map[string]bool)
	if reqList, ok := jsonSchema["required"].([]string); ok {
		for _, r := range reqList {
			required[r] = true
		}
	} else if reqList, ok := jsonSchema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(propsRaw))
	for name, raw := range propsRaw {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		paramType := schema.String
		switch prop["type"] {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		desc, _ := prop["description"].(string)
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     desc,
			Required: required[name],
		}
	}

	return params
}
