package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-justsh/justsh/errors"
	"github.com/go-justsh/justsh/model"
	"github.com/go-justsh/justsh/parser"
)

func build(t *testing.T, src string) (*model.Model, error) {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	return model.Build(prog)
}

func TestBuildResolvesVariablesAndRecipes(t *testing.T) {
	m, err := build(t, "greeting := \"hi\"\n\nbuild:\n    echo {{ greeting }}\n")
	require.NoError(t, err)
	require.Len(t, m.Variables, 1)
	require.Equal(t, "greeting", m.Variables[0].Name)
	r, ok := m.RecipeByName("build")
	require.True(t, ok)
	require.Equal(t, "build", r.Name)
}

func TestBuildDetectsDuplicateNames(t *testing.T) {
	_, err := build(t, "a := \"1\"\na := \"2\"\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindDuplicateName, ce.Kind)
}

func TestBuildDetectsUnknownDependency(t *testing.T) {
	_, err := build(t, "build: missing\n    echo hi\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindUnknownRecipe, ce.Kind)
}

func TestBuildDetectsDependencyCycle(t *testing.T) {
	_, err := build(t, "a: b\n    echo a\nb: a\n    echo b\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindCycle, ce.Kind)
}

func TestBuildDetectsAliasCycle(t *testing.T) {
	_, err := build(t, "alias a := b\nalias b := a\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindCycle, ce.Kind)
}

func TestBuildRejectsUnknownAttribute(t *testing.T) {
	_, err := build(t, "[bogus]\nbuild:\n    echo hi\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindUnknownAttribute, ce.Kind)
}

func TestBuildRejectsUnknownSetting(t *testing.T) {
	_, err := build(t, "set bogus-setting := \"x\"\n")
	require.Error(t, err)
	ce := err.(*errors.CompileError)
	require.Equal(t, errors.KindUnknownSetting, ce.Kind)
}

func TestPublicRecipesExcludesPrivateAndUnderscored(t *testing.T) {
	m, err := build(t, "[private]\nsecret:\n    echo shh\n\n_hidden:\n    echo hidden\n\npublic:\n    echo hi\n")
	require.NoError(t, err)
	pub := m.PublicRecipes()
	require.Len(t, pub, 1)
	require.Equal(t, "public", pub[0].Name)
}

func TestAliasResolvesToTarget(t *testing.T) {
	m, err := build(t, "alias b := build\n\nbuild:\n    echo hi\n")
	require.NoError(t, err)
	r, ok := m.RecipeByName("b")
	require.True(t, ok)
	require.Equal(t, "build", r.Name)
}
