package pipeline

import (
	"errors"

	"github.com/Knetic/govaluate"
	"github.com/rs/zerolog/log"
)

// GateEvaluator evaluates the gate expression of a stage against the build
// context to decide whether the stage runs or gets skipped
type GateEvaluator interface {
	Evaluate(stageName, expression string, parameters map[string]interface{}) (bool, error)
	GetParameters(buildContext BuildContext) map[string]interface{}
}

// NewGateEvaluator returns a new GateEvaluator
func NewGateEvaluator() GateEvaluator {
	return &gateEvaluator{}
}

type gateEvaluator struct {
}

func (ge *gateEvaluator) Evaluate(stageName, expression string, parameters map[string]interface{}) (result bool, err error) {

	if expression == "" {
		return false, errors.New("gate expression is empty")
	}

	log.Debug().Msgf("[%v] Evaluating gate expression \"%v\" with parameters \"%v\"", stageName, expression, parameters)

	evaluableExpression, err := govaluate.NewEvaluableExpression(expression)
	if err != nil {
		return
	}

	r, err := evaluableExpression.Evaluate(parameters)
	if err != nil {
		return
	}

	if result, ok := r.(bool); ok {
		return result, nil
	}

	return false, errors.New("result of evaluating gate expression is not of type boolean")
}

func (ge *gateEvaluator) GetParameters(buildContext BuildContext) map[string]interface{} {

	parameters := make(map[string]interface{}, 3)
	parameters["branch"] = buildContext.Branch
	parameters["environment"] = string(GetDeploymentEnvironment(buildContext.Branch))
	parameters["buildNumber"] = buildContext.BuildNumber

	return parameters
}
