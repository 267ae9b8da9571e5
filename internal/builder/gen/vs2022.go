package gen

import (
	"encoding/xml"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var errNoMsbuild = errors.New("msbuild not found, install Visual Studio or add MSBuild.exe to PATH")

//
// structures for .vcxproj
//

type VSProject struct {
	XMLName              xml.Name                `xml:"Project"`
	DefaultTargets       string                  `xml:"DefaultTargets,attr"`
	ToolsVersion         string                  `xml:"ToolsVersion,attr"`
	XMLNS                string                  `xml:"xmlns,attr"`
	PropertyGroups       []VSPropertyGroup       `xml:"PropertyGroup"`
	ItemGroups           []VSItemGroup           `xml:"ItemGroup"`
	ImportGroups         []VSImportGroup         `xml:"ImportGroup"`
	ItemDefinitionGroups []VSItemDefinitionGroup `xml:"ItemDefinitionGroup"`
	Imports              []VSImport              `xml:"Import"`
}

type VSItemGroup struct {
	Label                 string                   `xml:"Label,attr,omitempty"`
	ProjectConfigurations []VSProjectConfiguration `xml:"ProjectConfiguration,omitempty"`
	ClCompiles            []VSClCompile            `xml:"ClCompile,omitempty"`
}

type VSProjectConfiguration struct {
	Include       string `xml:"Include,attr"`
	Configuration string `xml:"Configuration"`
	Platform      string `xml:"Platform"`
}

// VSClCompile is one source file. The flags of its bucket are item metadata,
// so every bucket keeps its own flags and object directory inside the one
// project.
type VSClCompile struct {
	Include           string `xml:"Include,attr"`
	AdditionalOptions string `xml:"AdditionalOptions,omitempty"`
	ObjectFileName    string `xml:"ObjectFileName,omitempty"`
}

type VSPropertyGroup struct {
	Label                        string `xml:"Label,attr,omitempty"`
	Condition                    string `xml:"Condition,attr,omitempty"`
	PreferredToolArchitecture    string `xml:"PreferredToolArchitecture,omitempty"`
	ProjectGuid                  string `xml:"ProjectGuid,omitempty"`
	Keyword                      string `xml:"Keyword,omitempty"`
	WindowsTargetPlatformVersion string `xml:"WindowsTargetPlatformVersion,omitempty"`
	ProjectName                  string `xml:"ProjectName,omitempty"`
	ConfigurationType            string `xml:"ConfigurationType,omitempty"`
	PlatformToolset              string `xml:"PlatformToolset,omitempty"`
	CharacterSet                 string `xml:"CharacterSet,omitempty"`
	OutDir                       string `xml:"OutDir,omitempty"`
	IntDir                       string `xml:"IntDir,omitempty"`
	TargetName                   string `xml:"TargetName,omitempty"`
	TargetExt                    string `xml:"TargetExt,omitempty"`
	LinkIncremental              *bool  `xml:"LinkIncremental,omitempty"`
	GenerateManifest             bool   `xml:"GenerateManifest,omitempty"`
	UseDebugLibraries            *bool  `xml:"UseDebugLibraries,omitempty"`
	WholeProgramOptimization     *bool  `xml:"WholeProgramOptimization,omitempty"`
}

type VSImportGroup struct {
	Label   string     `xml:"Label,attr,omitempty"`
	Imports []VSImport `xml:"Import"`
}

type VSImport struct {
	Project   string `xml:"Project,attr"`
	Condition string `xml:"Condition,attr,omitempty"`
	Label     string `xml:"Label,attr,omitempty"`
}

type VSItemDefinitionGroup struct {
	Condition string          `xml:"Condition,attr"`
	ClCompile VSCppCompileDef `xml:"ClCompile"`
	Link      VSLinkDef       `xml:"Link"`
}

type VSCppCompileDef struct {
	WarningLevel            string `xml:"WarningLevel"`
	SDLCheck                bool   `xml:"SDLCheck"`
	PreprocessorDefinitions string `xml:"PreprocessorDefinitions"`
	ConformanceMode         bool   `xml:"ConformanceMode"`
	BasicRuntimeChecks      string `xml:"BasicRuntimeChecks,omitempty"`
	DebugInformationFormat  string `xml:"DebugInformationFormat,omitempty"`
	RuntimeLibrary          string `xml:"RuntimeLibrary,omitempty"`
	FunctionLevelLinking    *bool  `xml:"FunctionLevelLinking,omitempty"`
	IntrinsicFunctions      *bool  `xml:"IntrinsicFunctions,omitempty"`
}

type VSLinkDef struct {
	SubSystem                string `xml:"SubSystem"`
	GenerateDebugInformation *bool  `xml:"GenerateDebugInformation,omitempty"`
	AdditionalDependencies   string `xml:"AdditionalDependencies"`
	ProgramDataBaseFile      string `xml:"ProgramDataBaseFile,omitempty"`
	AdditionalOptions        string `xml:"AdditionalOptions,omitempty"`
	EnableCOMDATFolding      *bool  `xml:"EnableCOMDATFolding,omitempty"`
	OptimizeReferences       *bool  `xml:"OptimizeReferences,omitempty"`
}

type VSFiltersProject struct {
	XMLName      xml.Name             `xml:"Project"`
	ToolsVersion string               `xml:"ToolsVersion,attr"`
	XMLNS        string               `xml:"xmlns,attr"`
	ItemGroups   []VSFiltersItemGroup `xml:"ItemGroup"`
}

type VSFiltersItemGroup struct {
	ClCompiles []VSFiltersClCompile `xml:"ClCompile,omitempty"`
	Filters    []VSFiltersFilter    `xml:"Filter,omitempty"`
}

type VSFiltersClCompile struct {
	Include string `xml:"Include,attr"`
	Filter  string `xml:"Filter"`
}

type VSFiltersFilter struct {
	Include          string `xml:"Include,attr"`
	UniqueIdentifier string `xml:"UniqueIdentifier"`
	Extensions       string `xml:"Extensions"`
}

//
// generator
//

// VS2022Gen writes one .vcxproj per link action and a solution holding them.
// Each compile action (bucket) becomes a filter of the project.
type VS2022Gen struct {
	buildDir string
	msbuild  string
	compiles []CompileAction
	links    []LinkAction
	err      error // from writing the project files, returned by Invoke
}

// NewVS2022Gen creates the generator. msbuild may be empty, PATH is searched
// on Invoke then.
func NewVS2022Gen(buildDir, msbuild string) *VS2022Gen {
	return &VS2022Gen{buildDir: buildDir, msbuild: msbuild}
}

func (g *VS2022Gen) AddCompile(action CompileAction) { g.compiles = append(g.compiles, action) }
func (g *VS2022Gen) AddLink(action LinkAction)       { g.links = append(g.links, action) }

func (g *VS2022Gen) BuildFile() string {
	for _, link := range g.links {
		if !link.IsLib {
			return projectName(link) + ".sln"
		}
	}
	if len(g.links) > 0 {
		return projectName(g.links[0]) + ".sln"
	}
	return "qflags.sln"
}

// vsGuid derives a stable GUID, so regenerating doesn't churn the solution
func vsGuid(name string) string {
	return strings.ToUpper(uuid.NewSHA1(uuid.NameSpaceURL, []byte("qflags:"+name)).String())
}

func projectName(link LinkAction) string {
	return strings.TrimSuffix(link.Name, filepath.Ext(link.Name))
}

func (g *VS2022Gen) Generate() string {
	names := make([]string, 0, len(g.links))
	for _, link := range g.links {
		name := projectName(link)
		names = append(names, name)

		projectDir := filepath.Join(g.buildDir, name)
		if err := os.MkdirAll(projectDir, 0755); err != nil {
			g.err = errors.Join(g.err, err)
			continue
		}
		g.err = errors.Join(g.err,
			writeXML(filepath.Join(projectDir, name+".vcxproj"), g.project(link, projectDir)),
			writeXML(filepath.Join(projectDir, name+".vcxproj.filters"), g.filters(link, projectDir)),
		)
	}

	return g.solution(names)
}

func writeXML(path string, v any) error {
	output, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(xml.Header+string(output)), 0644)
}

func (g *VS2022Gen) solution(names []string) string {
	var sb strings.Builder

	writeln(&sb, "Microsoft Visual Studio Solution File, Format Version 12.00")
	writeln(&sb, "# Visual Studio Version 17")
	for _, name := range names {
		// Windows (Visual C++) https://github.com/VISTALL/visual-studio-project-type-guids
		writeln(&sb,
			`Project("{8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942}") = "`, name, `", "`, name, `\`, name, `.vcxproj", "{`, vsGuid(name), `}"`,
		)
		writeln(&sb, "EndProject")
	}
	writeln(&sb, "Global")
	writeln(&sb, "\tGlobalSection(SolutionConfigurationPlatforms) = preSolution")
	writeln(&sb, "\t\tDebug|x64 = Debug|x64")
	writeln(&sb, "\t\tRelease|x64 = Release|x64")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ProjectConfigurationPlatforms) = postSolution")
	for _, name := range names {
		guid := vsGuid(name)
		writeln(&sb, "\t\t{", guid, "}.Debug|x64.ActiveCfg = Debug|x64")
		writeln(&sb, "\t\t{", guid, "}.Debug|x64.Build.0 = Debug|x64")
		writeln(&sb, "\t\t{", guid, "}.Release|x64.ActiveCfg = Release|x64")
		writeln(&sb, "\t\t{", guid, "}.Release|x64.Build.0 = Release|x64")
	}
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(SolutionProperties) = preSolution")
	writeln(&sb, "\t\tHideSolutionNode = FALSE")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ExtensibilityGlobals) = postSolution")
	writeln(&sb, "\t\tSolutionGuid = {", vsGuid(strings.Join(names, ";")+".sln"), "}")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "EndGlobal")

	return sb.String()
}

// inputs returns the compile actions that feed link, in link input order
func (g *VS2022Gen) inputs(link LinkAction) []CompileAction {
	var actions []CompileAction
	for _, input := range link.Inputs {
		for _, action := range g.compiles {
			if action.Name == input.Action {
				actions = append(actions, action)
			}
		}
	}
	return actions
}

func (g *VS2022Gen) project(link LinkAction, projectDir string) VSProject {
	var clCompiles []VSClCompile
	for _, action := range g.inputs(link) {
		options := msbuildArgs(action.Args)
		for _, src := range action.Sources {
			relPath, err := filepath.Rel(projectDir, src)
			if err != nil {
				relPath = src
			}
			clCompiles = append(clCompiles, VSClCompile{
				Include:           relPath,
				AdditionalOptions: strings.TrimSpace(options + " %(AdditionalOptions)"),
				ObjectFileName:    action.ObjectPath(src),
			})
		}
	}

	name := projectName(link)
	allPropertyGroups := []VSPropertyGroup{
		{PreferredToolArchitecture: "x64"},
		{
			Label:                        "Globals",
			ProjectGuid:                  "{" + vsGuid(name) + "}",
			Keyword:                      "Win32Proj",
			WindowsTargetPlatformVersion: "10.0",
			ProjectName:                  name,
		},
	}
	allPropertyGroups = append(allPropertyGroups, g.createConfigurationPropertyGroups(link, projectDir)...)

	allImports := []VSImport{
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.Default.props`},
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.props`},
		{Project: `$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props`, Condition: `exists('$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props')`, Label: "LocalAppDataPlatform"},
		{Project: `$(VCTargetsPath)\Microsoft.Cpp.targets`},
	}

	return VSProject{
		DefaultTargets: "Build",
		ToolsVersion:   "17.0",
		XMLNS:          "http://schemas.microsoft.com/developer/msbuild/2003",
		PropertyGroups: allPropertyGroups,
		ItemGroups: []VSItemGroup{
			{
				Label: "ProjectConfigurations",
				ProjectConfigurations: []VSProjectConfiguration{
					{Include: "Debug|x64", Configuration: "Debug", Platform: "x64"},
					{Include: "Release|x64", Configuration: "Release", Platform: "x64"},
				},
			},
			{ClCompiles: clCompiles},
		},
		ItemDefinitionGroups: g.createItemDefinitionGroups(link),
		Imports:              allImports,
		ImportGroups:         []VSImportGroup{{Label: "ExtensionTargets"}},
	}
}

func (g *VS2022Gen) createConfigurationPropertyGroups(link LinkAction, projectDir string) []VSPropertyGroup {
	trueVal, falseVal := true, false
	// the output goes where `qflags run` looks for it
	outDir := g.buildDir + `\`
	name := projectName(link)

	groups := make([]VSPropertyGroup, 0, 4)
	for _, config := range []string{"Debug", "Release"} {
		condition := "'$(Configuration)|$(Platform)'=='" + config + "|x64'"
		debug := config == "Debug"
		configGroup := VSPropertyGroup{
			Condition:         condition,
			Label:             "Configuration",
			ConfigurationType: getConfigurationType(link.IsLib),
			PlatformToolset:   "v143",
			CharacterSet:      "Unicode",
		}
		if debug {
			configGroup.UseDebugLibraries = &trueVal
		} else {
			configGroup.UseDebugLibraries = &falseVal
			configGroup.WholeProgramOptimization = &trueVal
		}
		outGroup := VSPropertyGroup{
			Condition:        condition,
			OutDir:           outDir,
			IntDir:           filepath.Join(projectDir, "int", config) + `\`,
			TargetName:       name,
			TargetExt:        getTargetExt(link.IsLib),
			LinkIncremental:  &falseVal,
			GenerateManifest: true,
		}
		if debug {
			outGroup.LinkIncremental = &trueVal
		}
		groups = append(groups, configGroup, outGroup)
	}
	return groups
}

// createItemDefinitionGroups holds the project-wide settings. Optimization is
// left to the per-file options, which carry the profile's /O flag.
func (g *VS2022Gen) createItemDefinitionGroups(link LinkAction) []VSItemDefinitionGroup {
	trueVal, falseVal := true, false
	return []VSItemDefinitionGroup{
		{
			Condition: "'$(Configuration)|$(Platform)'=='Debug|x64'",
			ClCompile: VSCppCompileDef{
				WarningLevel:            "Level3",
				SDLCheck:                true,
				PreprocessorDefinitions: "WIN32;_WINDOWS;_DEBUG;%(PreprocessorDefinitions)",
				ConformanceMode:         true,
				// /RTC1 can't be combined with a bucket's /O2
				BasicRuntimeChecks:     "Default",
				DebugInformationFormat: "ProgramDatabase",
				RuntimeLibrary:         "MultiThreadedDebugDLL",
			},
			Link: VSLinkDef{
				SubSystem:                "Console",
				GenerateDebugInformation: &trueVal,
				AdditionalDependencies:   parseLibraries(link.Ldflags, !link.IsLib),
				ProgramDataBaseFile:      `$(OutDir)$(TargetName).pdb`,
				AdditionalOptions:        "%(AdditionalOptions) /machine:x64",
			},
		},
		{
			Condition: "'$(Configuration)|$(Platform)'=='Release|x64'",
			ClCompile: VSCppCompileDef{
				WarningLevel:            "Level3",
				SDLCheck:                true,
				PreprocessorDefinitions: "WIN32;_WINDOWS;NDEBUG;%(PreprocessorDefinitions)",
				ConformanceMode:         true,
				RuntimeLibrary:          "MultiThreadedDLL",
				FunctionLevelLinking:    &trueVal,
				IntrinsicFunctions:      &trueVal,
			},
			Link: VSLinkDef{
				SubSystem:                "Console",
				GenerateDebugInformation: &falseVal,
				AdditionalDependencies:   parseLibraries(link.Ldflags, !link.IsLib),
				EnableCOMDATFolding:      &trueVal,
				OptimizeReferences:       &trueVal,
				ProgramDataBaseFile:      `$(OutDir)$(TargetName).pdb`,
				AdditionalOptions:        "%(AdditionalOptions) /machine:x64",
			},
		},
	}
}

// filters groups the sources by bucket in the solution explorer
func (g *VS2022Gen) filters(link LinkAction, projectDir string) VSFiltersProject {
	var clCompiles []VSFiltersClCompile
	var filters []VSFiltersFilter
	for _, action := range g.inputs(link) {
		filters = append(filters, VSFiltersFilter{
			Include:          action.Name,
			UniqueIdentifier: "{" + vsGuid(projectName(link)+"/"+action.Name) + "}",
			Extensions:       "cpp;c;cc;cxx;c++;cppm;ixx",
		})
		for _, src := range action.Sources {
			relPath, err := filepath.Rel(projectDir, src)
			if err != nil {
				relPath = src
			}
			clCompiles = append(clCompiles, VSFiltersClCompile{Include: relPath, Filter: action.Name})
		}
	}

	return VSFiltersProject{
		ToolsVersion: "17.0",
		XMLNS:        "http://schemas.microsoft.com/developer/msbuild/2003",
		ItemGroups: []VSFiltersItemGroup{
			{ClCompiles: clCompiles},
			{Filters: filters},
		},
	}
}

func (g *VS2022Gen) Invoke(buildDir string) error {
	if g.err != nil {
		return g.err
	}

	msbuild := g.msbuild
	if msbuild == "" {
		path, err := exec.LookPath("msbuild")
		if err != nil {
			return errNoMsbuild
		}
		msbuild = path
	}

	cmd := exec.Command(msbuild, "/m", "/nologo", g.BuildFile())
	cmd.Dir = buildDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

func getConfigurationType(isLib bool) string {
	if isLib {
		return "StaticLibrary"
	}
	return "Application"
}

func getTargetExt(isLib bool) string {
	if isLib {
		return ".lib"
	}
	return ".exe"
}

var msbuildEscaper = strings.NewReplacer(
	"%", "%25", "$", "%24", "@", "%40", "'", "%27", ";", "%3B", "?", "%3F", "*", "%2A",
)

// msbuildArgs joins compiler arguments for an AdditionalOptions value
func msbuildArgs(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		if strings.ContainsAny(arg, " \t\"") {
			arg = `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
		}
		quoted[i] = msbuildEscaper.Replace(arg)
	}
	return strings.Join(quoted, " ")
}

func parseLibraries(ldflags []string, isExe bool) string {
	var libs []string
	if isExe {
		libs = append(libs, "kernel32.lib", "user32.lib", "gdi32.lib", "winspool.lib", "comdlg32.lib", "advapi32.lib", "shell32.lib", "ole32.lib", "oleaut32.lib", "uuid.lib")
	}
	for _, flag := range ldflags {
		lib := strings.TrimPrefix(flag, "-l")
		if !strings.HasSuffix(lib, ".lib") {
			lib += ".lib"
		}
		libs = append(libs, lib)
	}
	return strings.Join(libs, ";") + ";%(AdditionalDependencies)"
}
