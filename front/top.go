// Copyright 2024 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Parsing and type checking Go files and building their SSA form.

package front

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"sort"
	"strconv"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/s48/regbank/mir"
)

type ParsedFileT struct {
	AstFile  *ast.File
	FileSet  *token.FileSet
	Package  *ssa.Package
	Packages []*packages.Package // the file's imports
}

// Any imported packages are loaded with go/packages from 'directory'.

func ParseFile(fileName string, fileContents []byte, directory string) (*ParsedFileT, error) {
	fileSet := token.NewFileSet()
	file, err := parser.ParseFile(fileSet, fileName, fileContents, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}

	imports := importsT{packages: map[string]*types.Package{}}
	var loaded []*packages.Package
	if paths := importPaths(file); 0 < len(paths) {
		mode := packages.NeedName | packages.NeedTypes | packages.NeedImports | packages.NeedDeps
		packageConf := &packages.Config{Mode: mode, Dir: directory}
		loaded, err = packages.Load(packageConf, paths...)
		if err != nil {
			return nil, fmt.Errorf("loading imports of %s: %w", fileName, err)
		}
		if 0 < packages.PrintErrors(loaded) {
			return nil, fmt.Errorf("imports of %s had errors", fileName)
		}
		for _, peckage := range loaded {
			imports.packages[peckage.PkgPath] = peckage.Types
		}
	}

	conf := &types.Config{Importer: imports, Sizes: mipsSizes}
	pkg := types.NewPackage(file.Name.Name, file.Name.Name)
	ssaPackage, _, err := ssautil.BuildPackage(conf, fileSet, pkg, []*ast.File{file}, ssa.SanityCheckFunctions)
	if err != nil {
		return nil, err
	}
	return &ParsedFileT{AstFile: file, FileSet: fileSet, Package: ssaPackage, Packages: loaded}, nil
}

func ReadFile(fileName string, directory string) (*ParsedFileT, error) {
	contents, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	return ParseFile(fileName, contents, directory)
}

func importPaths(file *ast.File) []string {
	paths := []string{}
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err == nil {
			paths = append(paths, path)
		}
	}
	return paths
}

// This implements the types.Importer interface.

type importsT struct {
	packages map[string]*types.Package
}

func (imports importsT) Import(path string) (*types.Package, error) {
	peckage := imports.packages[path]
	if peckage == nil {
		return nil, fmt.Errorf("package '%s' not found", path)
	}
	return peckage, nil
}

// The file's functions in source order, or just the one named 'name'
// if that is not empty.

func (parsed *ParsedFileT) Functions(name string) []*ssa.Function {
	result := []*ssa.Function{}
	for _, member := range parsed.Package.Members {
		fn, ok := member.(*ssa.Function)
		if !ok || fn.Blocks == nil || fn.Synthetic != "" {
			continue
		}
		if name == "" || fn.Name() == name {
			result = append(result, fn)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Pos() < result[j].Pos() })
	return result
}

func (parsed *ParsedFileT) Lower(name string) ([]*mir.FunctionT, error) {
	result := []*mir.FunctionT{}
	for _, fn := range parsed.Functions(name) {
		lowered, err := LowerFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", parsed.FileSet.Position(fn.Pos()), err)
		}
		result = append(result, lowered)
	}
	return result, nil
}
