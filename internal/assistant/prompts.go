package assistant

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joelkehle/cip-designer/internal/cip"
)

const enhanceSystemPrompt = `You are an expert water treatment system engineer specializing in CIP (Clean-in-Place) systems for reverse osmosis membranes.

Your task is to enhance the specifications and comments in a Bill of Materials (BOM) to make them more professional, detailed, and useful for procurement and installation.

Guidelines:
1. Keep all technical specifications accurate and precise
2. Add relevant industry standards and certifications (ASME, NSF, FDA, AWWA, etc.)
3. Include detailed installation and operational notes
4. Use professional engineering terminology
5. Add safety considerations and warnings where relevant
6. Include typical lead times, vendor alternatives, and availability notes
7. Add quality assurance and testing requirements
8. Include maintenance schedules and replacement intervals
9. Add compliance requirements for different applications (pharma, food, industrial)
10. Include energy efficiency and cost optimization notes
11. Add troubleshooting and commissioning guidance
12. Include dimensional and connection specifications

For each BOM item, enhance:
- Specification: Make it detailed with standards, materials, ratings, and performance criteria
- Comments: Add installation notes, maintenance requirements, alternatives, and best practices

Do not change item names, quantities or costs, and keep the line order.
Return the enhanced BOM with comprehensive specifications and practical comments.`

func buildEnhancePrompt(in cip.DesignInput, result cip.DesignResult) string {
	heater := "None"
	if result.Summary.HeaterKW != nil {
		heater = fmt.Sprintf("%d", *result.Summary.HeaterKW)
	}
	return fmt.Sprintf(`Please enhance the following CIP system BOM with comprehensive, professional specifications and comments.

System Context:
- System Type: %s
- Design Flow: %v GPM maximum
- Tank Size: %d gallons
- Heater Power: %s kW
- Application: Industrial water treatment membrane cleaning

Input Parameters:
%s

Current BOM (to be enhanced):
%s

Return an array with exactly %d objects, one per BOM line in the same order, each with "item", "specification" and "comments" keys.

Specifications should include materials, ratings and dimensions, industry standards (ASME, NSF, FDA, AWWA, API), operating conditions, connection types and sizes.

Comments should include installation guidelines, maintenance schedules, safety considerations, vendor alternatives, commissioning requirements, typical lead times and troubleshooting tips.

Return only the enhanced BOM array in valid JSON format. Ensure all JSON is properly escaped.`,
		SystemDisplayName(cip.SystemType),
		result.Summary.Fmax,
		result.Summary.TankGal,
		heater,
		prettyJSON(in),
		prettyJSON(result.Bom),
		len(result.Bom),
	)
}

func buildChatSystemPrompt(sc SystemContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert water treatment system engineer specializing in %s systems.

Core Expertise:
- Membrane cleaning (CIP) systems for reverse osmosis
- Ion exchange systems for softening and demineralization
- Media filtration systems (multimedia, activated carbon)
- Ultrafiltration membrane systems

Your role is to provide helpful, accurate, and practical guidance to engineers designing water treatment systems.

Guidelines:
1. Give specific, actionable advice with concrete values when possible
2. Explain the engineering principles behind recommendations
3. Reference industry standards (AWWA, NSF, FDA) when relevant
4. Consider safety, efficiency, and cost optimization
5. Use professional terminology but explain complex concepts clearly
6. Provide troubleshooting help for common issues

Current Context:
- System Type: %s
- User is working on system design and may need guidance on parameters, specifications, or optimization`,
		strings.ToUpper(sc.SystemType), SystemDisplayName(sc.SystemType))

	if len(sc.CurrentParameters) > 0 && string(sc.CurrentParameters) != "null" {
		b.WriteString("\n- Current Parameters: ")
		b.WriteString(indentRaw(sc.CurrentParameters))
	}
	if len(sc.DesignResults) > 0 && string(sc.DesignResults) != "null" {
		b.WriteString("\n- Design Results: ")
		b.WriteString(indentRaw(sc.DesignResults))
	}
	b.WriteString("\n\nAlways be helpful and provide specific guidance. Focus on engineering value.")
	return b.String()
}

// SystemDisplayName maps a system type tag to the label used in prompts.
func SystemDisplayName(systemType string) string {
	switch systemType {
	case "cip-ro":
		return "Membrane Cleaning System (CIP for Reverse Osmosis)"
	case "ion-exchange":
		return "Ion Exchange System"
	case "media-filtration":
		return "Media Filtration System"
	case "ultrafiltration":
		return "Ultrafiltration System"
	default:
		return "Water Treatment System"
	}
}

func prettyJSON(v any) string {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func indentRaw(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return prettyJSON(v)
}
